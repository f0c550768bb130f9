// Package conversation orchestrates one generation turn: resolve the session
// and character, track the request id, call the inference engine, classify
// the reply, and persist both sides of the exchange.
package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/soradev/hearth/internal/analysis/emotion"
	"github.com/soradev/hearth/internal/engine"
	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/model/chat"
	"github.com/soradev/hearth/internal/registry"
)

// Service ties the registry to the inference engine.
type Service struct {
	registry     *registry.Registry
	engine       engine.Engine
	historyLimit int
}

// New builds the conversation service.
func New(reg *registry.Registry, eng engine.Engine, historyLimit int) *Service {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Service{registry: reg, engine: eng, historyLimit: historyLimit}
}

// Turn is the outcome of one completed generation.
type Turn struct {
	SessionID     string
	CharacterName string
	RequestID     string
	NeedsStarter  bool
	Response      string
	Emotion       string
	Sentiment     string
	Metadata      map[string]string
}

// Run executes one blocking turn for req.
func (s *Service) Run(ctx context.Context, req chat.TurnRequest) (Turn, error) {
	return s.run(ctx, req, nil)
}

// RunStream executes one turn, surfacing streamed fragments through fn.
func (s *Service) RunStream(ctx context.Context, req chat.TurnRequest, fn engine.DeltaFunc) (Turn, error) {
	return s.run(ctx, req, fn)
}

func (s *Service) run(ctx context.Context, req chat.TurnRequest, fn engine.DeltaFunc) (Turn, error) {
	conv := s.registry.GetOrCreateConversation(req.SessionID, req.CharacterName, req.DecryptionKey)
	if req.RequestID != "" {
		s.registry.TrackRequest(req.SessionID, req.RequestID)
	}

	history, err := s.registry.Transcript(req.SessionID)
	if err != nil {
		return Turn{}, err
	}

	if err := s.registry.AppendMessage(req.SessionID, chat.Message{
		Sender:  "user",
		Content: req.Message,
	}); err != nil {
		return Turn{}, err
	}

	messages := s.buildPrompt(conv.Character, history, req.Message)
	engineReq := engine.Request{RequestID: req.RequestID, Messages: messages}

	var result engine.Result
	if fn != nil {
		result, err = s.engine.Stream(ctx, engineReq, fn)
	} else {
		result, err = s.engine.Generate(ctx, engineReq)
	}
	if err != nil {
		return Turn{}, fmt.Errorf("generate for session %s: %w", req.SessionID, err)
	}

	decision := emotion.Analyze(req.Message, result.Content)
	if err := s.registry.AppendMessage(req.SessionID, chat.Message{
		Sender:    "assistant",
		Content:   result.Content,
		Emotion:   string(decision.Emotion),
		Sentiment: string(decision.Sentiment),
	}); err != nil {
		log.Printf("[conversation] persist assistant message session=%s: %v", req.SessionID, err)
	}

	log.Printf("[conversation] completed turn session=%s character=%s length=%d",
		req.SessionID, conv.Character.Name, len(result.Content))

	return Turn{
		SessionID:     req.SessionID,
		CharacterName: conv.Character.Name,
		RequestID:     req.RequestID,
		NeedsStarter:  s.registry.NeedsStarter(conv.Character.Name),
		Response:      result.Content,
		Emotion:       string(decision.Emotion),
		Sentiment:     string(decision.Sentiment),
		Metadata:      result.Metadata,
	}, nil
}

// buildPrompt assembles the engine transcript: system prompt from the
// character profile, a bounded history window, then the user's message.
func (s *Service) buildPrompt(ch character.Character, history []chat.Message, userMessage string) []engine.Message {
	messages := make([]engine.Message, 0, s.historyLimit+2)
	messages = append(messages, engine.Message{Role: engine.RoleSystem, Content: buildSystemPrompt(ch)})

	startIdx := 0
	if len(history) > s.historyLimit {
		startIdx = len(history) - s.historyLimit
	}
	for _, msg := range history[startIdx:] {
		switch msg.Sender {
		case "user":
			messages = append(messages, engine.Message{Role: engine.RoleUser, Content: msg.Content})
		case "assistant":
			messages = append(messages, engine.Message{Role: engine.RoleAssistant, Content: msg.Content})
		}
	}

	return append(messages, engine.Message{Role: engine.RoleUser, Content: userMessage})
}

func buildSystemPrompt(ch character.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", ch.Name, ch.Title)
	fmt.Fprintf(&b, "Tone: %s.\n", ch.Tone)
	if ch.Persona != "" {
		fmt.Fprintf(&b, "Style: %s\n", ch.Persona)
	}
	if ch.Backstory != "" {
		fmt.Fprintf(&b, "Background: %s\n", ch.Backstory)
	}
	if len(ch.Traits) > 0 {
		fmt.Fprintf(&b, "Traits: %s.\n", strings.Join(ch.Traits, ", "))
	}
	b.WriteString("Stay in character. Speak in first person and keep replies conversational.")
	return b.String()
}
