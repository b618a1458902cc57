// Package api serves the JSON endpoints, the inscription content proxy and
// the websocket that drives frame sessions.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rubiojr/ordframe/pkg/catalog"
	"github.com/rubiojr/ordframe/pkg/hiro"
	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/store"
)

var logger = log.ForService("api")

// ContentSource downloads inscription content. *hiro.Client implements it.
type ContentSource interface {
	FetchContent(ctx context.Context, id string) (hiro.Content, error)
}

// Info is reported by the health endpoint.
type Info struct {
	Debug      bool
	StorageDir string
}

// ViewerDefaults are the press and overlay timings handed to every new
// frame session. The slideshow interval comes from the page.
type ViewerDefaults struct {
	HoldDuration    time.Duration
	TapMax          time.Duration
	MetadataTimeout time.Duration
}

type Server struct {
	store   *store.Store
	catalog *catalog.Service
	content ContentSource
	hub     *realtime.Hub
	info    Info
	now     func() time.Time

	mu      sync.RWMutex
	viewing ViewerDefaults
}

func NewServer(st *store.Store, cat *catalog.Service, content ContentSource, info Info) *Server {
	return &Server{
		store:   st,
		catalog: cat,
		content: content,
		info:    info,
		now:     time.Now,
	}
}

// SetHub enables change notifications. Without a hub, saves are not
// announced and frame sessions never reload.
func (s *Server) SetHub(hub *realtime.Hub) {
	s.hub = hub
}

// SetViewerDefaults changes the timings used by sessions opened from now
// on.
func (s *Server) SetViewerDefaults(d ViewerDefaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = d
}

func (s *Server) viewerDefaults() ViewerDefaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewing
}

func (s *Server) publish(t realtime.EventType, detail string) {
	if s.hub != nil {
		s.hub.Broadcast(realtime.NewEvent(t, detail))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Success: false, Message: message})
}

// CorsMiddleware allows the JSON API to be called from other origins.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
