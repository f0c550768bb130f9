package character

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/pkg/utils"
)

// Handler exposes the character roster.
type Handler struct {
	store character.Store
}

// New creates the character handler.
func New(store character.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes wires the roster routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/characters", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}
