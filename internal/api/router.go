package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/chatwidget/internal/api/handlers"
	"github.com/agentoven/chatwidget/internal/api/middleware"
	"github.com/agentoven/chatwidget/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/personalities", h.ListPersonalities)

		r.With(chimw.Compress(5)).Post("/preview/reply", h.PreviewReply)

		r.Route("/widgets", func(r chi.Router) {
			r.Get("/", h.ListWidgets)
			r.Post("/", h.CreateWidget)
			r.Route("/{id}", func(r chi.Router) {
				// The WebSocket route must not be wrapped by Compress.
				r.Get("/ws", h.LiveChat)

				r.Group(func(r chi.Router) {
					r.Use(chimw.Compress(5))
					r.Get("/", h.GetWidget)
					r.Delete("/", h.DeleteWidget)
					r.Put("/config", h.UpdateWidgetConfig)
					r.Get("/embed", h.GetEmbed)

					r.Get("/messages", h.ListMessages)
					r.Post("/messages", h.PostMessage)

					r.Post("/buttons", h.AddButton)
					r.Delete("/buttons/{buttonId}", h.RemoveButton)
					r.Post("/buttons/{buttonId}/click", h.ClickButton)
				})
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "chatwidget",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "chatwidget",
		})
	}
}
