package registry

import "sync"

// StarterGate tracks, per character and across all sessions, whether the
// unprompted opening message has already been shown. A character greets the
// user once per process: opening a second tab on an already-active character
// must not repeat the greeting. The gate never reverts on its own; a force
// regeneration bypasses the check without touching this state.
type StarterGate struct {
	mu    sync.Mutex
	shown map[string]bool
}

// NewStarterGate builds a gate with every character in the not-yet-shown
// state.
func NewStarterGate() *StarterGate {
	return &StarterGate{shown: make(map[string]bool)}
}

// Needs reports whether the character still owes its opening message.
func (g *StarterGate) Needs(characterName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.shown[characterName]
}

// MarkShown transitions the character to shown. Idempotent.
func (g *StarterGate) MarkShown(characterName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shown[characterName] = true
}

// Forget clears one character's record, returning it to not-yet-shown.
func (g *StarterGate) Forget(characterName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.shown, characterName)
}

// Reset clears every record.
func (g *StarterGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shown = make(map[string]bool)
}

// ShownCount reports how many characters have greeted.
func (g *StarterGate) ShownCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.shown)
}
