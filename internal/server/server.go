// Package server exposes the stylization pipeline over HTTP: the upload
// endpoint, static result serving, transformation history and the progress
// websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"time"

	"ghibli-stylizer/internal/config"
	"ghibli-stylizer/internal/events"
	"ghibli-stylizer/internal/logger"
	"ghibli-stylizer/internal/storage"
	"ghibli-stylizer/internal/stylize"
)

// Stylizer is the slice of the fallback chain the handlers depend on.
type Stylizer interface {
	Stylize(ctx context.Context, src image.Image) (*stylize.PipelineResult, error)
}

// Server wires the HTTP surface around the stylization chain.
type Server struct {
	cfg        *config.Config
	logger     logger.Logger
	chain      Stylizer
	transforms storage.TransformRepository
	hub        *events.Hub
	httpServer *http.Server
}

func New(cfg *config.Config, log logger.Logger, chain Stylizer, transforms storage.TransformRepository, hub *events.Hub) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     log,
		chain:      chain,
		transforms: transforms,
		hub:        hub,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/transform", s.handleTransform)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/transforms", s.handleTransformHistory)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.Handle("/static/uploads/", http.StripPrefix("/static/uploads/",
		http.FileServer(http.Dir(s.cfg.UploadDirectory))))

	return mux
}

// Start serves until Shutdown is called; it returns http.ErrServerClosed on
// a clean stop.
func (s *Server) Start() error {
	s.logger.Info("server", "HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("server", err, map[string]interface{}{
			"context": "encoding response",
		})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
