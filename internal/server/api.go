package server

import (
	"net/http"
	"strconv"

	"ghibli-stylizer/internal/storage"
)

const defaultHistoryLimit = 50

// handleHealth reports liveness along with hub and history fan-out
// statistics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	count, err := s.transforms.Count()
	if err != nil {
		s.logger.Warning("server", "Failed to count transforms", map[string]interface{}{
			"error": err.Error(),
		})
		count = -1
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"transforms_stored": count,
		"event_clients":     s.hub.ClientCount(),
	})
}

// handleTransformHistory lists recent transforms, newest first. The limit
// query parameter caps the page size; invalid values fall back to the
// default.
func (s *Server) handleTransformHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	transforms, err := s.transforms.GetRecent(limit)
	if err != nil {
		s.logger.Error("server", err, map[string]interface{}{
			"context": "listing transforms",
		})
		s.respondError(w, http.StatusInternalServerError, "Failed to list transforms")
		return
	}
	if transforms == nil {
		transforms = []storage.Transform{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"transforms": transforms,
		"count":      len(transforms),
	})
}
