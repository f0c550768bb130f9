// Package engine talks to the locally hosted inference engine. The engine is
// a black box that accepts generation requests tagged with a request id and a
// best-effort cancel-by-request-id call.
package engine

import "context"

// Role values accepted in a prompt transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one generation attempt.
type Request struct {
	RequestID string    `json:"requestId"`
	Messages  []Message `json:"messages"`
}

// Delta is one streamed content fragment.
type Delta struct {
	Content string
	Done    bool
}

// Result is the reassembled output of one generation.
type Result struct {
	Content  string
	Metadata map[string]string
}

// DeltaFunc observes streamed fragments as they arrive. Returning an error
// aborts the stream.
type DeltaFunc func(Delta) error

// Engine is the inference collaborator interface.
type Engine interface {
	// Generate runs one blocking generation.
	Generate(ctx context.Context, req Request) (Result, error)
	// Stream runs one streaming generation, invoking fn per fragment, and
	// returns the reassembled result. fn may be nil to collect silently.
	Stream(ctx context.Context, req Request, fn DeltaFunc) (Result, error)
	// Cancel asks the engine to abandon work for a request id. Best effort:
	// an unknown or already finished id is not an error.
	Cancel(ctx context.Context, requestID string) error
	// Ping verifies the engine is reachable.
	Ping(ctx context.Context) error
}
