package chat

import "time"

// Message persists individual turns for transcript replay.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	Sentiment string    `json:"sentiment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TurnRequest is the wire shape for initiating a generation turn.
type TurnRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"sessionId"`
	CharacterName string `json:"characterName"`
	RequestID     string `json:"requestId"`
	DecryptionKey string `json:"decryptionKey,omitempty"`
}

// TurnResponse is the blocking-mode reply for one completed turn.
type TurnResponse struct {
	SessionID     string            `json:"sessionId"`
	CharacterName string            `json:"characterName"`
	RequestID     string            `json:"requestId"`
	NeedsStarter  bool              `json:"needsStarter"`
	Response      string            `json:"response"`
	Emotion       string            `json:"emotion"`
	Sentiment     string            `json:"sentiment"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
