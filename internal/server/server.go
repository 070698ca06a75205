// Package server exposes the document pipeline over HTTP. The JSON API under
// /api mirrors the frontend's needs; /documents/{id}/report renders a
// human-readable classification report.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"iosplit/internal/config"
	"iosplit/internal/pipeline"
)

// Server is the HTTP front of the pipeline service.
type Server struct {
	cfg    *config.Config
	svc    *pipeline.Service
	router chi.Router
}

// New creates a server with routes and middleware installed.
func New(cfg *config.Config, svc *pipeline.Service) *Server {
	s := &Server{cfg: cfg, svc: svc}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/classify", s.handleClassify)
		r.Post("/redact", s.handleRedact)
		r.Post("/extract", s.handleExtract)
		r.Get("/documents/{id}", s.handleDocument)
	})

	r.Get("/documents/{id}/report", s.handleReport)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve starts the HTTP server on the configured port.
func Serve(cfg *config.Config, svc *pipeline.Service) error {
	srv := New(cfg, svc)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on http://localhost%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
