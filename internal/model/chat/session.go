package chat

import "time"

// Session captures one browser tab's conversation context. The identifier is
// minted by the tab and never shared across tabs.
type Session struct {
	ID             string    `json:"id"`
	CharacterName  string    `json:"characterName"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}
