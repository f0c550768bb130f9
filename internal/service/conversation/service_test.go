package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/model/chat"
	"github.com/soradev/hearth/internal/registry"
)

// scriptedEngine replies with a fixed string and records prompts.
type scriptedEngine struct {
	mu       sync.Mutex
	reply    string
	failWith error
	prompts  [][]engine.Message
}

func (e *scriptedEngine) Generate(ctx context.Context, req engine.Request) (engine.Result, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, req.Messages)
	e.mu.Unlock()
	if e.failWith != nil {
		return engine.Result{}, e.failWith
	}
	return engine.Result{Content: e.reply}, nil
}

func (e *scriptedEngine) Stream(ctx context.Context, req engine.Request, fn engine.DeltaFunc) (engine.Result, error) {
	result, err := e.Generate(ctx, req)
	if err != nil {
		return engine.Result{}, err
	}
	if fn != nil {
		if err := fn(engine.Delta{Content: result.Content, Done: true}); err != nil {
			return engine.Result{}, err
		}
	}
	return result, nil
}

func (e *scriptedEngine) Cancel(ctx context.Context, requestID string) error { return nil }
func (e *scriptedEngine) Ping(ctx context.Context) error                     { return nil }

func (e *scriptedEngine) lastPrompt() []engine.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.prompts) == 0 {
		return nil
	}
	return e.prompts[len(e.prompts)-1]
}

func newTestService(reply string) (*Service, *registry.Registry, *scriptedEngine) {
	eng := &scriptedEngine{reply: reply}
	reg := registry.New(character.NewMemoryStore(character.Seed()), eng)
	return New(reg, eng, 10), reg, eng
}

func TestRunPersistsBothSides(t *testing.T) {
	svc, reg, _ := newTestService("I'm listening.")

	turn, err := svc.Run(context.Background(), chat.TurnRequest{
		Message:   "long day",
		SessionID: "tab-1",
		RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}

	if turn.Response != "I'm listening." {
		t.Fatalf("unexpected response: %q", turn.Response)
	}
	if turn.CharacterName != character.DefaultName {
		t.Fatalf("expected default character, got %s", turn.CharacterName)
	}

	transcript, err := reg.Transcript("tab-1")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(transcript))
	}
	if transcript[0].Sender != "user" || transcript[1].Sender != "assistant" {
		t.Fatalf("unexpected senders: %s, %s", transcript[0].Sender, transcript[1].Sender)
	}
}

func TestRunTracksRequestID(t *testing.T) {
	svc, reg, _ := newTestService("ok")

	if _, err := svc.Run(context.Background(), chat.TurnRequest{
		Message:   "hello",
		SessionID: "tab-1",
		RequestID: "req-42",
	}); err != nil {
		t.Fatalf("Run err: %v", err)
	}

	if got := reg.LatestRequestID("tab-1"); got != "req-42" {
		t.Fatalf("expected req-42 tracked, got %q", got)
	}
}

func TestRunPromptIncludesCharacterAndHistory(t *testing.T) {
	svc, _, eng := newTestService("ok")
	ctx := context.Background()

	if _, err := svc.Run(ctx, chat.TurnRequest{Message: "first", SessionID: "tab-1", CharacterName: "Mara"}); err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if _, err := svc.Run(ctx, chat.TurnRequest{Message: "second", SessionID: "tab-1"}); err != nil {
		t.Fatalf("Run err: %v", err)
	}

	prompt := eng.lastPrompt()
	if prompt[0].Role != engine.RoleSystem {
		t.Fatalf("expected system prompt first, got %s", prompt[0].Role)
	}
	// system + (first, ok) + second
	if len(prompt) != 4 {
		t.Fatalf("expected 4 prompt messages, got %d", len(prompt))
	}
	if prompt[1].Content != "first" || prompt[2].Content != "ok" {
		t.Fatalf("history missing: %+v", prompt)
	}
	if prompt[3].Content != "second" {
		t.Fatalf("expected user message last, got %q", prompt[3].Content)
	}
}

func TestRunSurfacesEngineFailure(t *testing.T) {
	svc, _, eng := newTestService("")
	eng.failWith = errors.New("model crashed")

	if _, err := svc.Run(context.Background(), chat.TurnRequest{Message: "hi", SessionID: "tab-1"}); err == nil {
		t.Fatal("expected engine failure to surface")
	}
}

func TestStarterShownOnceAcrossSessions(t *testing.T) {
	svc, _, _ := newTestService("Well met, traveler.")
	ctx := context.Background()

	first, err := svc.Starter(ctx, "tab-1", "Echo", false)
	if err != nil {
		t.Fatalf("Starter err: %v", err)
	}
	if first.SkipStarter || first.Starter == "" {
		t.Fatalf("first fetch must return a starter, got %+v", first)
	}

	second, err := svc.Starter(ctx, "tab-2", "Echo", false)
	if err != nil {
		t.Fatalf("Starter err: %v", err)
	}
	if !second.SkipStarter || second.Starter != "" {
		t.Fatalf("second fetch must skip, got %+v", second)
	}
}

func TestStarterForceBypassesGate(t *testing.T) {
	svc, reg, _ := newTestService("Again, hello!")
	ctx := context.Background()

	if _, err := svc.Starter(ctx, "tab-1", "Echo", false); err != nil {
		t.Fatalf("Starter err: %v", err)
	}

	forced, err := svc.Starter(ctx, "tab-1", "Echo", true)
	if err != nil {
		t.Fatalf("Starter err: %v", err)
	}
	if forced.SkipStarter || forced.Starter == "" {
		t.Fatalf("forced fetch must return content, got %+v", forced)
	}

	// Force does not reset the gate for other sessions.
	if reg.NeedsStarter("Echo") {
		t.Fatal("gate must stay shown after force")
	}
}

func TestStarterFallsBackWhenEngineFails(t *testing.T) {
	svc, _, eng := newTestService("")
	eng.failWith = errors.New("engine down")

	result, err := svc.Starter(context.Background(), "tab-1", "Juniper", false)
	if err != nil {
		t.Fatalf("starter path must not error: %v", err)
	}
	if result.Starter == "" {
		t.Fatal("expected scripted greeting fallback")
	}
}
