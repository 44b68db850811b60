package toolsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// Package-level logger for tools
var logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
	Level: slog.LevelError,
}))

// SetLogger allows setting a custom logger for the tools package
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// GetLogger returns the package logger
func GetLogger() *slog.Logger {
	return logger
}

var (
	ErrUnsafePath     = errors.New("unsafe path")
	ErrInvalidParams  = errors.New("invalid parameters")
	ErrMissingColumns = errors.New("column not found in query result")
)

// DefaultSession is used when a request carries no session id.
const DefaultSession = "default"

type sessionKey struct{}

// WithSession attaches the session whose scratch table tools operate on.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session attached to ctx or DefaultSession.
func SessionFrom(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultSession
}

// MissingColumnsError lists the requested columns a result does not have.
func MissingColumnsError(missing, available []string) error {
	return fmt.Errorf("%w: %s (available columns: %s)",
		ErrMissingColumns, strings.Join(missing, ", "), strings.Join(available, ", "))
}

// IsPathSafe checks if a directory is acceptable for writing images
func IsPathSafe(path string) bool {
	cleanPath := filepath.Clean(path)

	dangerousPaths := []string{
		"/etc",
		"/bin",
		"/sbin",
		"/usr/bin",
		"/usr/sbin",
		"/boot",
		"/sys",
		"/proc",
		"/dev",
		"/root",
		"/var/log",
		"/var/lib",
		"/var/run",
		"/lib",
		"/lib64",
		"/usr/lib",
		"/usr/lib64",
	}

	for _, dangerous := range dangerousPaths {
		if cleanPath == dangerous || strings.HasPrefix(cleanPath, dangerous+"/") {
			return false
		}
	}

	// Clean resolves inner "..", so only a leading one escapes
	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") || strings.HasPrefix(cleanPath, `..\`) {
		return false
	}

	if strings.Contains(cleanPath, "\x00") {
		return false
	}

	return true
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
