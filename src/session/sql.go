package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elee1766/dataagent/src/storage"
	"golang.org/x/sync/singleflight"
)

// SQLStore keeps mappings in the application database.
type SQLStore struct {
	db     *storage.DB
	create CreateFunc
	logger *slog.Logger
	group  singleflight.Group
}

func NewSQLStore(db *storage.DB, create CreateFunc, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, create: create, logger: logger.With("component", "session_sql")}
}

func (s *SQLStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	sess, err := storage.GetSession(ctx, s.db.DB(), sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	if sess == nil {
		return "", nil
	}
	return sess.ThreadID, nil
}

func (s *SQLStore) ResolveOrCreate(ctx context.Context, sessionID string) (string, bool, error) {
	id, err := s.Lookup(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		if err := storage.TouchSession(ctx, s.db.DB(), sessionID); err != nil {
			s.logger.Warn("failed to touch session", "session_id", sessionID, "error", err)
		}
		return id, false, nil
	}

	created := false
	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		id, err := createThread(ctx, s.create)
		if err != nil {
			return "", err
		}
		inserted, err := storage.InsertSession(ctx, s.db.DB(), &storage.Session{SessionID: sessionID, ThreadID: id})
		if err != nil {
			return "", fmt.Errorf("failed to store session: %w", err)
		}
		if inserted {
			created = true
			return id, nil
		}
		winner, err := s.Lookup(ctx, sessionID)
		if err != nil {
			return "", err
		}
		return winner, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), created, nil
}
