// Package registry owns the server-side session state: which character each
// tab-local session is bound to, its transcript, the latest request id seen
// for it, and the global record of which characters have already greeted.
package registry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

type sessionState struct {
	session         chat.Session
	messages        []chat.Message
	latestRequestID string
	decryptionKey   string
}

// Registry maps session ids to conversation state. Accesses are keyed by
// session id and safe under concurrent calls from different tabs.
type Registry struct {
	characters character.Store
	canceller  engine.Engine

	mu       sync.RWMutex
	sessions map[string]*sessionState

	starter *StarterGate
}

// New builds an empty registry. The engine is used only as the cancellation
// hook and may be nil in tests that never cancel.
func New(characters character.Store, canceller engine.Engine) *Registry {
	return &Registry{
		characters: characters,
		canceller:  canceller,
		sessions:   make(map[string]*sessionState),
		starter:    NewStarterGate(),
	}
}

// Conversation is the handle returned by GetOrCreateConversation. It reflects
// the character the session is currently bound to.
type Conversation struct {
	SessionID string
	Character character.Character
	Created   bool
}

// ActiveCharacterName reports the character currently bound to the session.
func (c *Conversation) ActiveCharacterName() string {
	return c.Character.Name
}

// GetOrCreateConversation resolves a session+character pair. A missing
// session is created; an existing session asked for a different character is
// rebound to it (a switch, not a new session). An empty characterName keeps
// the session's bound character, or the default for a fresh session.
// Resolution never fails on an unknown character: it falls back to the
// default roster entry.
func (r *Registry) GetOrCreateConversation(sessionID, characterName, decryptionKey string) Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	state, ok := r.sessions[sessionID]
	if !ok {
		ch := r.resolveCharacter(characterName)
		state = &sessionState{
			session: chat.Session{
				ID:             sessionID,
				CharacterName:  ch.Name,
				CreatedAt:      now,
				LastActivityAt: now,
			},
			messages: make([]chat.Message, 0, 16),
		}
		r.sessions[sessionID] = state
		if decryptionKey != "" {
			state.decryptionKey = decryptionKey
		}
		log.Printf("[registry] created session=%s character=%s", sessionID, ch.Name)
		return Conversation{SessionID: sessionID, Character: ch, Created: true}
	}

	state.session.LastActivityAt = now
	if decryptionKey != "" {
		state.decryptionKey = decryptionKey
	}

	if characterName != "" && characterName != state.session.CharacterName {
		ch := r.resolveCharacter(characterName)
		log.Printf("[registry] session=%s switching character %s -> %s", sessionID, state.session.CharacterName, ch.Name)
		state.session.CharacterName = ch.Name
		return Conversation{SessionID: sessionID, Character: ch}
	}

	return Conversation{SessionID: sessionID, Character: r.resolveCharacter(state.session.CharacterName)}
}

// resolveCharacter falls back to the default roster entry for unknown names.
// Callers hold r.mu.
func (r *Registry) resolveCharacter(name string) character.Character {
	if name != "" {
		if ch, ok := r.characters.FindByName(name); ok {
			return ch
		}
		log.Printf("[registry] unknown character %q, using default", name)
	}
	return r.characters.Default()
}

// TrackRequest records requestID as the session's latest, overwriting any
// prior value. No ordering validation happens here: the client is the source
// of truth for "latest" and the server only remembers the id for the
// cancellation hook. Last write wins under interleaving.
func (r *Registry) TrackRequest(sessionID, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	state.latestRequestID = requestID
	state.session.LastActivityAt = time.Now().UTC()
}

// LatestRequestID returns the last tracked request id for a session.
func (r *Registry) LatestRequestID(sessionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.sessions[sessionID]; ok {
		return state.latestRequestID
	}
	return ""
}

// CancelRequest forwards a best-effort cancel to the engine in a detached
// goroutine. Failures are observed only for logging; cancellation is always
// reported as accepted to the caller.
func (r *Registry) CancelRequest(sessionID, requestID string) {
	if r.canceller == nil || requestID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.canceller.Cancel(ctx, requestID); err != nil {
			log.Printf("[registry] cancel session=%s request=%s: %v", sessionID, requestID, err)
		}
	}()
}

// AppendMessage stores a turn on the session transcript.
func (r *Registry) AppendMessage(sessionID string, message chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	message.SessionID = sessionID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	state.messages = append(state.messages, message)
	state.session.LastActivityAt = time.Now().UTC()
	return nil
}

// Transcript returns a copy of the session's stored messages.
func (r *Registry) Transcript(sessionID string) ([]chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(state.messages))
	copy(copied, state.messages)
	return copied, nil
}

// ClearSession empties the transcript but keeps the session and its bound
// character. Clearing a missing session is a no-op.
func (r *Registry) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.sessions[sessionID]; ok {
		state.messages = state.messages[:0]
		state.session.LastActivityAt = time.Now().UTC()
	}
}

// DeleteSession removes all state for a session. Deleting a missing session
// is a no-op, not an error.
func (r *Registry) DeleteSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// DeleteAll clears every session and every starter record.
func (r *Registry) DeleteAll() {
	r.mu.Lock()
	r.sessions = make(map[string]*sessionState)
	r.mu.Unlock()

	r.starter.Reset()
}

// DeleteByCharacter removes every session bound to the character and clears
// its starter record. Returns the number of sessions removed.
func (r *Registry) DeleteByCharacter(characterName string) int {
	r.mu.Lock()
	removed := 0
	for id, state := range r.sessions {
		if state.session.CharacterName == characterName {
			delete(r.sessions, id)
			removed++
		}
	}
	r.mu.Unlock()

	r.starter.Forget(characterName)
	return removed
}

// EvictIdle drops sessions whose last activity is older than the cutoff.
// Returns the number of sessions evicted.
func (r *Registry) EvictIdle(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, state := range r.sessions {
		if state.session.LastActivityAt.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[registry] evicted %d idle sessions", evicted)
	}
	return evicted
}

// Stats aggregates counts only; transcript content never leaves the registry
// through this path.
type Stats struct {
	Sessions      int `json:"sessions"`
	StartersShown int `json:"startersShown"`
}

// Stats reports aggregate counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	sessions := len(r.sessions)
	r.mu.RUnlock()

	return Stats{Sessions: sessions, StartersShown: r.starter.ShownCount()}
}

// NeedsStarter reports whether the character's opening message has not yet
// been shown in any session.
func (r *Registry) NeedsStarter(characterName string) bool {
	return r.starter.Needs(characterName)
}

// MarkStarterShown flips the character's starter gate to shown.
func (r *Registry) MarkStarterShown(characterName string) {
	r.starter.MarkShown(characterName)
}
