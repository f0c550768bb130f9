// Package protocol implements the event-stream protocol that carries one
// generation turn from the server to a tab: a connected frame on handshake,
// a message frame with the generated text, and a terminal done or error frame.
package protocol

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// EventType identifies one frame on the wire.
type EventType string

const (
	EventConnected EventType = "connected"
	EventMessage   EventType = "message"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// ConnectedPayload echoes the session and request the stream belongs to.
// Purely informational.
type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
}

// MessagePayload carries the generated text plus classification metadata.
type MessagePayload struct {
	SessionID string            `json:"sessionId"`
	RequestID string            `json:"requestId"`
	Response  string            `json:"response"`
	Emotion   string            `json:"emotion,omitempty"`
	Sentiment string            `json:"sentiment,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DonePayload is the terminal success marker. A message frame is not
// actionable until this arrives.
type DonePayload struct {
	Status string `json:"status"`
}

// ErrorPayload is the terminal failure marker.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Frame is one decoded unit of the stream.
type Frame struct {
	Type EventType
	Data json.RawMessage
}

// Connected decodes the frame as a connected payload.
func (f Frame) Connected() (ConnectedPayload, error) {
	var p ConnectedPayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}

// Message decodes the frame as a message payload.
func (f Frame) Message() (MessagePayload, error) {
	var p MessagePayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}

// ErrorMessage decodes the frame as an error payload.
func (f Frame) ErrorMessage() (ErrorPayload, error) {
	var p ErrorPayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}

// SetupHeaders prepares a ResponseWriter for an event stream.
func SetupHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// WriteFrame frames one event onto the stream and flushes it. Marshal
// failures are logged and dropped so a bad payload never tears the stream.
func WriteFrame(w http.ResponseWriter, flusher http.Flusher, event EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[protocol] failed to marshal %s frame: %v", event, err)
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
