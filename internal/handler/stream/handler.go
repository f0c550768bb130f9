package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soradev/hearth/internal/model/chat"
	"github.com/soradev/hearth/internal/protocol"
	"github.com/soradev/hearth/internal/service/conversation"
	"github.com/soradev/hearth/pkg/utils"
)

// Handler serves streaming generation turns over the event-stream protocol.
type Handler struct {
	conv *conversation.Service
}

// New creates the stream handler.
func New(conv *conversation.Service) *Handler {
	return &Handler{conv: conv}
}

// RegisterRoutes wires the streaming endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

// handleStream emits connected, then message, then done, or error on
// failure. The message frame alone is not actionable: clients finalize only
// on done.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var payload chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Message = strings.TrimSpace(payload.Message)
	if payload.Message == "" || strings.TrimSpace(payload.SessionID) == "" {
		fields := make(map[string]string)
		if payload.Message == "" {
			fields["message"] = "must not be empty"
		}
		if strings.TrimSpace(payload.SessionID) == "" {
			fields["sessionId"] = "must not be empty"
		}
		utils.RespondValidationError(w, fields)
		return
	}

	protocol.SetupHeaders(w)
	protocol.WriteFrame(w, flusher, protocol.EventConnected, protocol.ConnectedPayload{
		SessionID: payload.SessionID,
		RequestID: payload.RequestID,
	})

	turn, err := h.conv.RunStream(r.Context(), payload, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[stream] request %s cancelled mid-generation", payload.RequestID)
			return
		}
		log.Printf("[stream] generation failed session=%s: %v", payload.SessionID, err)
		protocol.WriteFrame(w, flusher, protocol.EventError, protocol.ErrorPayload{
			Error: "generation failed",
		})
		return
	}

	protocol.WriteFrame(w, flusher, protocol.EventMessage, protocol.MessagePayload{
		SessionID: turn.SessionID,
		RequestID: turn.RequestID,
		Response:  turn.Response,
		Emotion:   turn.Emotion,
		Sentiment: turn.Sentiment,
		Metadata:  turn.Metadata,
	})
	protocol.WriteFrame(w, flusher, protocol.EventDone, protocol.DonePayload{Status: "complete"})

	log.Printf("[stream] completed turn session=%s character=%s", turn.SessionID, turn.CharacterName)
}
