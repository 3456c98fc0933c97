// Package web provides the HTTP API server.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/gallery"
	"github.com/visionid/visionid/internal/web/handlers"
	"github.com/visionid/visionid/internal/web/middleware"
)

// Deps bundles the collaborators the server needs. Everything is constructed
// by the caller; the server only wires routes. Recognition writes history
// only; AttendanceMarker is the same pipeline with attendance marking wired
// in, serving the attendance mark endpoint.
type Deps struct {
	Recognition      handlers.RecognitionService
	AttendanceMarker handlers.RecognitionService
	Enroll           handlers.EnrollService
	Identities       database.IdentityReader
	Attendance       database.AttendanceWriter
	History          database.RecognitionReader
	Lookalike        *gallery.LookalikeIndex
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // bulk uploads take a while
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
