package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/model/chat"
)

// recordingEngine counts cancel calls and never errors.
type recordingEngine struct {
	mu        sync.Mutex
	cancelled []string
}

func (e *recordingEngine) Generate(ctx context.Context, req engine.Request) (engine.Result, error) {
	return engine.Result{Content: "ok"}, nil
}

func (e *recordingEngine) Stream(ctx context.Context, req engine.Request, fn engine.DeltaFunc) (engine.Result, error) {
	return engine.Result{Content: "ok"}, nil
}

func (e *recordingEngine) Cancel(ctx context.Context, requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = append(e.cancelled, requestID)
	return nil
}

func (e *recordingEngine) Ping(ctx context.Context) error { return nil }

func newTestRegistry() (*Registry, *recordingEngine) {
	eng := &recordingEngine{}
	return New(character.NewMemoryStore(character.Seed()), eng), eng
}

func TestGetOrCreateConversationCreates(t *testing.T) {
	reg, _ := newTestRegistry()

	conv := reg.GetOrCreateConversation("tab-1", "Juniper", "")
	if !conv.Created {
		t.Fatal("expected a fresh session")
	}
	if conv.ActiveCharacterName() != "Juniper" {
		t.Fatalf("expected Juniper, got %s", conv.ActiveCharacterName())
	}
}

func TestGetOrCreateConversationDefaultsCharacter(t *testing.T) {
	reg, _ := newTestRegistry()

	conv := reg.GetOrCreateConversation("tab-1", "", "")
	if conv.ActiveCharacterName() != character.DefaultName {
		t.Fatalf("expected default character, got %s", conv.ActiveCharacterName())
	}
}

func TestGetOrCreateConversationUnknownCharacterFallsBack(t *testing.T) {
	reg, _ := newTestRegistry()

	conv := reg.GetOrCreateConversation("tab-1", "Nobody", "")
	if conv.ActiveCharacterName() != character.DefaultName {
		t.Fatalf("expected default character, got %s", conv.ActiveCharacterName())
	}
}

func TestGetOrCreateConversationSwitchRebinds(t *testing.T) {
	reg, _ := newTestRegistry()

	reg.GetOrCreateConversation("tab-1", "Echo", "")
	if err := reg.AppendMessage("tab-1", chat.Message{Sender: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	conv := reg.GetOrCreateConversation("tab-1", "Mara", "")
	if conv.Created {
		t.Fatal("switch must not create a new session")
	}
	if conv.ActiveCharacterName() != "Mara" {
		t.Fatalf("expected rebind to Mara, got %s", conv.ActiveCharacterName())
	}

	// The transcript survives a switch; only the binding changes.
	transcript, err := reg.Transcript("tab-1")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 1 {
		t.Fatalf("expected transcript to survive switch, got %d messages", len(transcript))
	}
}

func TestGetOrCreateConversationOmittedCharacterKeepsBinding(t *testing.T) {
	reg, _ := newTestRegistry()

	reg.GetOrCreateConversation("tab-1", "Mara", "")
	conv := reg.GetOrCreateConversation("tab-1", "", "")
	if conv.ActiveCharacterName() != "Mara" {
		t.Fatalf("expected previously bound Mara, got %s", conv.ActiveCharacterName())
	}
}

func TestTrackRequestLastWriteWins(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "", "")

	reg.TrackRequest("tab-1", "req-1")
	reg.TrackRequest("tab-1", "req-2")

	if got := reg.LatestRequestID("tab-1"); got != "req-2" {
		t.Fatalf("expected req-2, got %s", got)
	}
}

func TestCancelRequestForwardsToEngine(t *testing.T) {
	reg, eng := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "", "")
	reg.TrackRequest("tab-1", "req-1")

	reg.CancelRequest("tab-1", "req-1")
	reg.CancelRequest("tab-1", "req-1") // idempotent, never errors

	deadline := time.After(2 * time.Second)
	for {
		eng.mu.Lock()
		n := len(eng.cancelled)
		eng.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 forwarded cancels, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestConcurrentTrackAndCancelSameSession(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			reg.TrackRequest("tab-1", "req")
		}(i)
		go func(n int) {
			defer wg.Done()
			reg.CancelRequest("tab-1", "req")
		}(i)
	}
	wg.Wait()

	if got := reg.LatestRequestID("tab-1"); got != "req" {
		t.Fatalf("expected req, got %s", got)
	}
}

func TestClearSessionKeepsBinding(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Juniper", "")
	if err := reg.AppendMessage("tab-1", chat.Message{Sender: "user", Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	reg.ClearSession("tab-1")

	transcript, err := reg.Transcript("tab-1")
	if err != nil {
		t.Fatalf("session should survive clear: %v", err)
	}
	if len(transcript) != 0 {
		t.Fatalf("expected empty transcript, got %d", len(transcript))
	}

	conv := reg.GetOrCreateConversation("tab-1", "", "")
	if conv.ActiveCharacterName() != "Juniper" {
		t.Fatalf("expected binding to survive clear, got %s", conv.ActiveCharacterName())
	}
}

func TestDeleteSessionScoping(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Echo", "")
	reg.GetOrCreateConversation("tab-2", "Echo", "")

	reg.DeleteSession("tab-1")
	reg.DeleteSession("tab-1") // no-op, not an error

	if _, err := reg.Transcript("tab-1"); err == nil {
		t.Fatal("expected tab-1 to be gone")
	}
	if _, err := reg.Transcript("tab-2"); err != nil {
		t.Fatalf("tab-2 must be untouched: %v", err)
	}
}

func TestDeleteByCharacterScoping(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Echo", "")
	reg.GetOrCreateConversation("tab-2", "Mara", "")
	reg.GetOrCreateConversation("tab-3", "Echo", "")
	reg.MarkStarterShown("Echo")
	reg.MarkStarterShown("Mara")

	removed := reg.DeleteByCharacter("Echo")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := reg.Transcript("tab-2"); err != nil {
		t.Fatalf("Mara session must be untouched: %v", err)
	}
	if !reg.NeedsStarter("Echo") {
		t.Fatal("Echo starter record should be cleared")
	}
	if reg.NeedsStarter("Mara") {
		t.Fatal("Mara starter record must be untouched")
	}
}

func TestDeleteAll(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Echo", "")
	reg.MarkStarterShown("Echo")

	reg.DeleteAll()

	stats := reg.Stats()
	if stats.Sessions != 0 || stats.StartersShown != 0 {
		t.Fatalf("expected empty registry, got %+v", stats)
	}
}

func TestStatsCountsOnly(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Echo", "")
	reg.GetOrCreateConversation("tab-2", "Mara", "")
	reg.MarkStarterShown("Echo")

	stats := reg.Stats()
	if stats.Sessions != 2 {
		t.Fatalf("expected 2 sessions, got %d", stats.Sessions)
	}
	if stats.StartersShown != 1 {
		t.Fatalf("expected 1 starter shown, got %d", stats.StartersShown)
	}
}

func TestEvictIdle(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.GetOrCreateConversation("tab-1", "Echo", "")

	if evicted := reg.EvictIdle(time.Hour); evicted != 0 {
		t.Fatalf("fresh session must not be evicted, got %d", evicted)
	}
	if evicted := reg.EvictIdle(-time.Second); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
}
