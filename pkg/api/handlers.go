package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/realtime"
	"github.com/rubiojr/ordframe/pkg/version"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) HandleOrdinals(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Catalog(r.Context())
	if err != nil {
		logger.Errorf("Loading catalog: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load ordinals")
		return
	}
	sel, err := s.store.Selection(r.Context())
	if err != nil {
		logger.Errorf("Loading selection: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load ordinals")
		return
	}

	writeJSON(w, http.StatusOK, OrdinalsResponse{
		Success:   true,
		Metadata:  cat,
		Selection: sel,
	})
}

func (s *Server) HandleUpdateSelection(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "selected_ids is required")
		return
	}
	raw, ok := body["selected_ids"]
	if !ok {
		writeError(w, http.StatusBadRequest, "selected_ids is required")
		return
	}
	ids, err := decodeIDList(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "selected_ids must be a list")
		return
	}

	if err := s.store.SaveSelection(r.Context(), ids); err != nil {
		logger.Errorf("Error updating selection: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update selection")
		return
	}
	s.publish(realtime.EventSelection, strconv.Itoa(len(ids)))

	writeJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Selection updated: %d Ordinals selected", len(ids)),
	})
}

// decodeIDList accepts a JSON array of strings. null and any other JSON
// type are rejected.
func decodeIDList(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("not a list")
	}
	ids := []string{}
	if err := json.Unmarshal(trimmed, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Server) HandleFetchOrdinals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address *string `json:"address"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Address == nil {
		writeError(w, http.StatusBadRequest, "Address is required")
		return
	}

	res, err := s.catalog.FetchAddress(r.Context(), strings.TrimSpace(*req.Address))
	switch {
	case errors.Is(err, ordinals.ErrAddressRequired), errors.Is(err, ordinals.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger.Errorf("Error fetching Ordinals: %v", err)
		writeJSON(w, http.StatusInternalServerError, FetchResponse{
			Success:  false,
			Message:  fmt.Sprintf("Error fetching Ordinals: %v", err),
			Ordinals: []ordinals.Ordinal{},
		})
		return
	}

	writeJSON(w, http.StatusOK, FetchResponse{
		Success:    true,
		Message:    res.Message(),
		Ordinals:   res.Ordinals,
		TotalCount: res.TotalCount,
		ImageCount: res.ImageCount,
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Version:   version.APIVersion(),
		Timestamp: s.now().Format(time.RFC3339),
		Config: HealthConfig{
			Debug:      s.info.Debug,
			StorageDir: s.info.StorageDir,
		},
	}

	if cat, err := s.store.Catalog(r.Context()); err == nil {
		health.Config.OrdinalsCount = len(cat.Ordinals)
	} else {
		logger.Warnf("Health: loading catalog: %v", err)
	}
	if ids, err := s.store.LoadSelection(r.Context()); err == nil {
		health.Config.SelectedCount = len(ids)
	} else {
		logger.Warnf("Health: loading selection: %v", err)
	}

	writeJSON(w, http.StatusOK, health)
}

// HandleContent proxies inscription content so the frame never talks to
// the API directly.
func (s *Server) HandleContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, err := s.content.FetchContent(r.Context(), id)
	if err != nil {
		logger.Errorf("Error serving inscription content %s: %v", id, err)
		writeJSON(w, http.StatusNotFound, ContentErrorResponse{Error: "Content not found"})
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Body); err != nil {
		logger.Debugf("Writing content %s: %v", id, err)
	}
}
