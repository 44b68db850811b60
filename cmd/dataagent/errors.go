package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/elee1766/dataagent/src/app"
	"github.com/elee1766/dataagent/src/config"
	"github.com/elee1766/dataagent/src/oaiclient"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/visualize"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitNetwork     = 6 // Hosted service error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// configError marks failures to load or validate configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		cfgErr *configError
		valErr config.ValidationError
		apiErr *oaiclient.APIError
		visErr *visualize.Error
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.Is(err, app.ErrNoAssistant):
		return ExitConfig
	case errors.Is(err, oaiclient.ErrNoAPIKey):
		return ExitAuth
	case errors.As(err, &apiErr):
		if apiErr.IsAuthError() {
			return ExitAuth
		}
		return ExitNetwork
	case errors.Is(err, rundriver.ErrRunTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &visErr) && visErr.Status == http.StatusBadRequest:
		return ExitUsage
	case errors.Is(err, rundriver.ErrRunFailed), errors.Is(err, rundriver.ErrTooManyActionRounds):
		return ExitNetwork
	}
	return ExitError
}
