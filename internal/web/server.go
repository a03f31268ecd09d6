// Package web provides a lightweight web dashboard.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/user/nsmon/internal/storage"
	"github.com/user/nsmon/internal/util"
)

const shutdownTimeout = 10 * time.Second

// Server is the web server.
type Server struct {
	db     *storage.DB
	config ConfigSource
	port   int
	srv    *http.Server
}

// NewServer creates a new web server.
func NewServer(db *storage.DB, configs ConfigSource, port int) *Server {
	return &Server{
		db:     db,
		config: configs,
		port:   port,
	}
}

// Handler returns the routed handler without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	h := NewHandlers(s.db, s.config)

	mux.HandleFunc("/", h.Dashboard)
	mux.HandleFunc("/api/status", h.APIGetStatus)
	mux.HandleFunc("/api/stats", h.APIGetStats)
	mux.HandleFunc("/api/sessions", h.APIGetSessions)
	mux.HandleFunc("/api/events", h.APIGetEvents)
	mux.HandleFunc("/report", h.DownloadReport)

	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			util.Warn("Web server shutdown: %v", err)
		}
	}()

	util.Info("Web server starting on port %d", s.port)

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop stops the web server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
