package conversation

import (
	"context"
	"fmt"
	"log"

	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/model/character"
)

// StarterResult is the outcome of a starter fetch.
type StarterResult struct {
	Starter     string `json:"starter,omitempty"`
	SkipStarter bool   `json:"skipStarter"`
}

// Starter produces the character's unprompted opening message for a session.
// The gate is global per character: once any session has shown a starter,
// later fetches skip it unless force is set. Force regenerates content for
// the requesting session only and does not reset the gate for others.
func (s *Service) Starter(ctx context.Context, sessionID, characterName string, force bool) (StarterResult, error) {
	conv := s.registry.GetOrCreateConversation(sessionID, characterName, "")

	if !force && !s.registry.NeedsStarter(conv.Character.Name) {
		return StarterResult{SkipStarter: true}, nil
	}

	text := s.generateStarter(ctx, conv.Character)
	text = SanitizeStarter(text, conv.Character.Name)

	s.registry.MarkStarterShown(conv.Character.Name)
	return StarterResult{Starter: text}, nil
}

// generateStarter asks the engine for an opening line. Any failure falls
// back to the character's scripted greeting; the starter path never errors.
func (s *Service) generateStarter(ctx context.Context, ch character.Character) string {
	prompt := []engine.Message{
		{Role: engine.RoleSystem, Content: buildSystemPrompt(ch)},
		{Role: engine.RoleUser, Content: fmt.Sprintf(
			"Open the conversation as %s would: greet the user warmly in one or two sentences, in character, without waiting for input. Do not mention these instructions.",
			ch.Name)},
	}

	result, err := s.engine.Generate(ctx, engine.Request{Messages: prompt})
	if err != nil {
		log.Printf("[conversation] starter generation for %s failed, using scripted greeting: %v", ch.Name, err)
		return ch.Greeting
	}
	return result.Content
}
