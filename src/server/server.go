// Package server exposes the chat, visualize and image endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/session"
	"github.com/elee1766/dataagent/src/visualize"
)

const shutdownTimeout = 10 * time.Second

// Turner drives one conversational turn on a thread.
type Turner interface {
	Turn(ctx context.Context, threadID, assistantID, message string) (*rundriver.TurnResult, error)
}

// Visualizer runs the one-shot visualize pipeline.
type Visualizer interface {
	Run(ctx context.Context, req visualize.Request) (*visualize.Result, error)
}

// Config wires a Server.
type Config struct {
	Turner      Turner
	Sessions    session.Store
	Visualizer  Visualizer
	AssistantID string

	Fs       afero.Fs
	ImageDir string
	// ImageURLPrefix is the URL path images are served under, e.g. /images.
	ImageURLPrefix string

	Version string
	Logger  *slog.Logger
	// NewSessionID generates ids for /api/new-thread.
	NewSessionID func() string
}

type Server struct {
	cfg     Config
	echo    *echo.Echo
	logger  *slog.Logger
	locks   *keyedMutex
	started time.Time
}

func New(cfg Config) (*Server, error) {
	if cfg.Turner == nil || cfg.Sessions == nil {
		return nil, errors.New("server requires a turner and a session store")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("server requires an assistant id")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = "images"
	}
	if cfg.ImageURLPrefix == "" {
		cfg.ImageURLPrefix = "/images"
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = newSessionID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		echo:    echo.New(),
		logger:  logger.With("component", "server"),
		locks:   newKeyedMutex(),
		started: time.Now(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.Use(middleware.Recover())

	e.POST("/chat", s.handleChat)
	e.POST("/api/new-thread", s.handleNewThread)
	e.POST("/visualize", s.handleVisualize)
	e.GET(s.cfg.ImageURLPrefix+"/*", s.handleImage)
	e.GET("/health", s.handleHealth)
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
