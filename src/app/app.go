// Package app wires configuration into the databases, hosted client, tools
// and the components built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/config"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/oaiclient"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/session"
	"github.com/elee1766/dataagent/src/storage"
	"github.com/elee1766/dataagent/src/tools"
	tool_similarkeywords "github.com/elee1766/dataagent/src/tools/tool_similarkeywords"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
	"github.com/elee1766/dataagent/src/visualize"
)

// ErrNoAssistant is returned when a command needs a deployed assistant.
var ErrNoAssistant = errors.New("assistant.id is not configured; run `dataagent deploy` first")

// App holds the opened resources of one process.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Fs      afero.Fs
	Client  *oaiclient.Client
	Primary *datastore.Primary
	Scratch *datastore.Scratch
	Store   *storage.DB
	Toolbox *agent.DefaultToolbox

	closers []func() error
}

// New opens every database and builds the toolbox. The API key is only
// needed once a hosted call is made.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Fs:     afero.NewOsFs(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	toolsutil.SetLogger(logger.With("component", "tools"))

	a.Client = oaiclient.NewClient(oaiclient.Config{
		APIKey:     cfg.API.Key,
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout.Std(),
		RetryCount: cfg.API.RetryCount,
		Logger:     logger,
	})

	if err := ensureParent(cfg.Storage.Path); err != nil {
		return nil, err
	}
	a.Store, err = storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Primary, err = datastore.OpenPrimary(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Primary.Close)

	if err := ensureParent(cfg.Scratch.Path); err != nil {
		return nil, err
	}
	a.Scratch, err = datastore.OpenScratch(cfg.Scratch.Path, cfg.Scratch.Shared)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Scratch.Close)

	deps := tools.Deps{
		Primary:  a.Primary,
		Scratch:  a.Scratch,
		Fs:       a.Fs,
		ImageDir: cfg.Images.Dir,
	}
	if cfg.Keywords.CSVPath != "" {
		deps.Keywords = tool_similarkeywords.NewIndex(a.Fs, cfg.Keywords.CSVPath, a.Client, cfg.Models.Embedding)
	} else {
		logger.Warn("keywords.csv_path is not set; keyword similarity tool disabled")
	}
	a.Toolbox, err = tools.NewToolbox(deps, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build toolbox: %w", err)
	}

	logger.Debug("app initialized",
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Path,
		"scratch", cfg.Scratch.Path,
		"tools", len(a.Toolbox.Tools()),
		"api", cfg.API)
	return a, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// createThread is the session stores' thread factory.
func (a *App) createThread(ctx context.Context) (string, error) {
	thread, err := a.Client.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// Sessions opens the configured session store.
func (a *App) Sessions(ctx context.Context) (session.Store, error) {
	cfg := a.Config.Session
	switch cfg.Backend {
	case session.BackendRedis:
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return session.NewRedisStore(rdb, cfg.TTL.Std(), a.createThread, a.Logger), nil
	case session.BackendSQLite:
		return session.NewSQLStore(a.Store, a.createThread, a.Logger), nil
	case session.BackendMemory, "":
		return session.NewMemoryStore(a.createThread), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// Policy converts the run settings into a driver policy.
func (a *App) Policy() rundriver.Policy {
	run := a.Config.Run
	return rundriver.Policy{
		PollInterval:    run.PollInterval.Std(),
		Timeout:         run.Timeout.Std(),
		MaxPolls:        run.MaxPolls,
		MaxActionRounds: run.MaxActionRounds,
		SnapshotMode:    rundriver.ParseSnapshotMode(run.SnapshotMode),
	}
}

// Driver builds a run driver that records into the application database.
func (a *App) Driver(onProgress func(rundriver.Event)) (*rundriver.Driver, error) {
	return rundriver.New(rundriver.Config{
		Client:     a.Client,
		Toolbox:    a.Toolbox,
		Policy:     a.Policy(),
		Scratch:    a.Scratch,
		Recorder:   storage.NewRecorder(a.Store),
		Logger:     a.Logger,
		OnProgress: onProgress,
	})
}

func (a *App) Visualizer() *visualize.Pipeline {
	return visualize.New(visualize.Config{
		Primary:         a.Primary,
		Completer:       a.Client,
		Fs:              a.Fs,
		ImageDir:        a.Config.Images.Dir,
		CompletionModel: a.Config.Models.Completion,
		VisionModel:     a.Config.Models.Vision,
		Logger:          a.Logger,
	})
}

// AssistantID returns the configured assistant or ErrNoAssistant.
func (a *App) AssistantID() (string, error) {
	if a.Config.Assistant.ID == "" {
		return "", ErrNoAssistant
	}
	return a.Config.Assistant.ID, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
