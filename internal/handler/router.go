package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soradev/hearth/internal/engine"
	characterHandler "github.com/soradev/hearth/internal/handler/character"
	chatHandler "github.com/soradev/hearth/internal/handler/chat"
	streamHandler "github.com/soradev/hearth/internal/handler/stream"
	middlewarePkg "github.com/soradev/hearth/internal/middleware"
	characterModel "github.com/soradev/hearth/internal/model/character"
	"github.com/soradev/hearth/internal/registry"
	"github.com/soradev/hearth/internal/service/conversation"
	"github.com/soradev/hearth/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(characters characterModel.Store, reg *registry.Registry, conv *conversation.Service, eng engine.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		characterHandler.New(characters).RegisterRoutes(api)
		chatHandler.New(conv, reg).RegisterRoutes(api)
		streamHandler.New(conv).RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			status := map[string]string{"status": "ok", "engine": "ok"}
			code := http.StatusOK
			if err := eng.Ping(r.Context()); err != nil {
				status["engine"] = err.Error()
				code = http.StatusServiceUnavailable
			}
			utils.RespondJSON(w, code, status)
		})
	})

	return r
}
