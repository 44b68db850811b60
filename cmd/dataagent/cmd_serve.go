package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/elee1766/dataagent/src/app"
	"github.com/elee1766/dataagent/src/oaiclient"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/server"
	"github.com/elee1766/dataagent/src/telemetry"
)

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	logger, closeLog, err := createServeLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	assistantID, err := a.AssistantID()
	if err != nil {
		return err
	}
	if cfg.API.Key == "" {
		return fmt.Errorf("cannot serve: %w", oaiclient.ErrNoAPIKey)
	}

	sessions, err := a.Sessions(ctx)
	if err != nil {
		return err
	}
	driver, err := a.Driver(func(e rundriver.Event) {
		logger.Debug(e.Message, "thread_id", e.ThreadID, "run_id", e.RunID, "event", e.Type)
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Turner:         driver,
		Sessions:       sessions,
		Visualizer:     a.Visualizer(),
		AssistantID:    assistantID,
		Fs:             a.Fs,
		ImageDir:       cfg.Images.Dir,
		ImageURLPrefix: cfg.Images.URLPrefix,
		Version:        version,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	logger.Info("serving", "addr", cfg.Server.Addr, "assistant_id", assistantID, "session_backend", cfg.Session.Backend)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
