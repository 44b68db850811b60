// Package session maps HTTP session ids to hosted conversation threads.
package session

import (
	"context"
	"errors"
	"fmt"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

var (
	ErrEmptySessionID = errors.New("session id is empty")
	ErrNoThread       = errors.New("thread creation returned an empty id")
)

// CreateFunc creates a new hosted thread and returns its id.
type CreateFunc func(ctx context.Context) (string, error)

// Store resolves sessions to threads. ResolveOrCreate creates a thread on the
// first call for a session; concurrent first calls agree on one thread.
type Store interface {
	ResolveOrCreate(ctx context.Context, sessionID string) (threadID string, created bool, err error)
	// Lookup returns "" when the session has no thread yet.
	Lookup(ctx context.Context, sessionID string) (string, error)
}

func createThread(ctx context.Context, create CreateFunc) (string, error) {
	id, err := create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	if id == "" {
		return "", ErrNoThread
	}
	return id, nil
}
