package client

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// TabState holds the identifiers one tab carries for its lifetime: the
// session id (minted once, never shared across tabs) and the character the
// tab currently talks to. It replaces ambient browser-local storage with an
// explicit struct handed to the coordinator at construction.
type TabState struct {
	mu        sync.Mutex
	sessionID string
	character string
}

// NewTabState returns an empty tab state; the session id is minted lazily on
// first read.
func NewTabState() *TabState {
	return &TabState{}
}

// SessionID reads the tab's session id, creating one on first use.
func (t *TabState) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == "" {
		t.sessionID = ulid.Make().String()
	}
	return t.sessionID
}

// SetSessionID overwrites the session id, e.g. when restoring a saved tab.
func (t *TabState) SetSessionID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = id
}

// Character reads the tab's active character name. May be empty, in which
// case the server binds its default.
func (t *TabState) Character() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.character
}

// SetCharacter overwrites the active character for this tab.
func (t *TabState) SetCharacter(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.character = name
}
