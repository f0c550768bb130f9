package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soradev/hearth/internal/model/chat"
	"github.com/soradev/hearth/internal/registry"
	"github.com/soradev/hearth/internal/service/conversation"
	"github.com/soradev/hearth/pkg/utils"
)

// Handler serves the blocking turn endpoint and the session lifecycle
// operations.
type Handler struct {
	conv *conversation.Service
	reg  *registry.Registry
}

// New creates the chat handler.
func New(conv *conversation.Service, reg *registry.Registry) *Handler {
	return &Handler{conv: conv, reg: reg}
}

// RegisterRoutes wires the chat and session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleGenerate)
	r.Post("/chat/cancel", h.handleCancel)
	r.Get("/starter", h.handleStarter)
	r.Post("/session/clear", h.handleClearSession)
	r.Delete("/session/{sessionID}", h.handleDeleteSession)
	r.Get("/session/stats", h.handleStats)
	r.Delete("/sessions", h.handleDeleteAll)
	r.Delete("/sessions/character/{characterName}", h.handleDeleteByCharacter)
}

// decodeTurnRequest validates the shared request body. Validation failures
// are reported with field-level detail before any registry interaction.
func decodeTurnRequest(w http.ResponseWriter, r *http.Request) (chat.TurnRequest, bool) {
	var payload chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return chat.TurnRequest{}, false
	}

	fields := make(map[string]string)
	payload.Message = strings.TrimSpace(payload.Message)
	if payload.Message == "" {
		fields["message"] = "must not be empty"
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		fields["sessionId"] = "must not be empty"
	}
	if len(fields) > 0 {
		utils.RespondValidationError(w, fields)
		return chat.TurnRequest{}, false
	}

	return payload, true
}

// handleGenerate runs one blocking generation turn.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeTurnRequest(w, r)
	if !ok {
		return
	}

	turn, err := h.conv.Run(r.Context(), payload)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The tab aborted or went away; nothing to answer.
			log.Printf("[chat] request %s cancelled mid-generation", payload.RequestID)
			return
		}
		log.Printf("[chat] generation failed session=%s: %v", payload.SessionID, err)
		utils.RespondError(w, http.StatusBadGateway, "generation failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.TurnResponse{
		SessionID:     turn.SessionID,
		CharacterName: turn.CharacterName,
		RequestID:     turn.RequestID,
		NeedsStarter:  turn.NeedsStarter,
		Response:      turn.Response,
		Emotion:       turn.Emotion,
		Sentiment:     turn.Sentiment,
		Metadata:      turn.Metadata,
	})
}

// handleCancel forwards a best-effort cancellation. It always acknowledges:
// the request may already have finished, and a failed cancel is not an error
// the client can act on.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		RequestID string `json:"requestId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.reg.CancelRequest(payload.SessionID, payload.RequestID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleStarter serves the conversation starter, gated once per character.
func (h *Handler) handleStarter(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	characterName := strings.TrimSpace(r.URL.Query().Get("characterName"))
	if sessionID == "" {
		utils.RespondValidationError(w, map[string]string{"sessionId": "must not be empty"})
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := h.conv.Starter(r.Context(), sessionID, characterName, force)
	if err != nil {
		log.Printf("[chat] starter failed session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusBadGateway, "starter generation failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleClearSession empties history but keeps the character binding.
func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		utils.RespondValidationError(w, map[string]string{"sessionId": "must not be empty"})
		return
	}

	h.reg.ClearSession(payload.SessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.reg.DeleteSession(sessionID)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.reg.Stats())
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	h.reg.DeleteAll()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleDeleteByCharacter(w http.ResponseWriter, r *http.Request) {
	characterName := chi.URLParam(r, "characterName")
	removed := h.reg.DeleteByCharacter(characterName)
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "deleted",
		"removed": removed,
	})
}
