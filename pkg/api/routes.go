package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(CorsMiddleware)
		r.Get("/api/ordinals", s.HandleOrdinals)
		r.Post("/api/update-selection", s.HandleUpdateSelection)
		r.Post("/api/fetch-ordinals", s.HandleFetchOrdinals)
		r.Get("/api/health", s.HandleHealth)
		r.Options("/api/*", func(w http.ResponseWriter, r *http.Request) {})
	})
	r.Get("/content/{id}", s.HandleContent)
	r.Get("/frame/ws", s.HandleFrameSession)
}
