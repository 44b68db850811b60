package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elee1766/dataagent/src/sqlguard"
)

// SharedTable is the table name tools refer to. Queries against the scratch
// store have it rewritten to the session's own table.
const SharedTable = "intermediary_table"

var ErrNoScratchData = errors.New("no intermediary data for this session; run intermediary_dataframe_retrieval first")

var (
	sharedIdentRe = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_"])intermediary_table([^A-Za-z0-9_"]|$)`)
	unsafeIdentRe = regexp.MustCompile(`[^a-z0-9_]+`)
	scratchNS     = uuid.MustParse("6f1c7d3e-2a0b-4c55-9a8e-d1b0f3c2a901")
)

// Scratch holds the latest query result of each session in its own table.
// In shared mode every session writes the single intermediary_table, so a
// turn can observe rows written by another session.
type Scratch struct {
	db     *sql.DB
	shared bool

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// OpenScratch opens (or creates) the scratch sqlite database at path.
func OpenScratch(path string, shared bool) (*Scratch, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return NewScratch(db, shared), nil
}

func NewScratch(db *sql.DB, shared bool) *Scratch {
	return &Scratch{
		db:     db,
		shared: shared,
		locks:  make(map[string]*sync.RWMutex),
	}
}

func (s *Scratch) Close() error {
	return s.db.Close()
}

func (s *Scratch) Shared() bool {
	return s.shared
}

// TableFor returns the table that holds sessionID's data.
func (s *Scratch) TableFor(sessionID string) string {
	if s.shared {
		return SharedTable
	}
	prefix := unsafeIdentRe.ReplaceAllString(strings.ToLower(sessionID), "_")
	if len(prefix) > 24 {
		prefix = prefix[:24]
	}
	sum := strings.ReplaceAll(uuid.NewSHA1(scratchNS, []byte(sessionID)).String(), "-", "")
	return "scratch_" + strings.Trim(prefix, "_") + "_" + sum[:8]
}

func (s *Scratch) lock(table string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[table]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[table] = l
	}
	return l
}

// Replace drops table and recreates it holding rs, in one transaction.
func (s *Scratch) Replace(ctx context.Context, table string, rs *ResultSet) error {
	if len(rs.Columns) == 0 {
		return fmt.Errorf("cannot store a result without columns")
	}

	l := s.lock(table)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}

	defs := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		defs[i] = strings.TrimSpace(QuoteIdent(col) + " " + columnType(rs.Column(col)))
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	if len(rs.Rows) > 0 {
		quoted := make([]string, len(rs.Columns))
		marks := make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			quoted[i] = QuoteIdent(col)
			marks[i] = "?"
		}
		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(rs.Columns))
		for _, row := range rs.Rows {
			for i, col := range rs.Columns {
				args[i] = storable(row[col])
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return nil
}

// Query runs a read-only statement against table. The identifier
// intermediary_table is rewritten to table.
func (s *Scratch) Query(ctx context.Context, table, query string) (*ResultSet, error) {
	q, err := sqlguard.Validate(query)
	if err != nil {
		return nil, err
	}
	q = RewriteTable(q, table)

	l := s.lock(table)
	l.RLock()
	defer l.RUnlock()

	ok, err := s.exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoScratchData
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanResultSet(rows)
}

// All returns the table contents, or an empty result when it does not exist.
func (s *Scratch) All(ctx context.Context, table string) (*ResultSet, error) {
	l := s.lock(table)
	l.RLock()
	defer l.RUnlock()

	ok, err := s.exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ResultSet{Columns: []string{}, Rows: []map[string]any{}}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return scanResultSet(rows)
}

// Drop removes table if it exists.
func (s *Scratch) Drop(ctx context.Context, table string) error {
	l := s.lock(table)
	l.Lock()
	defer l.Unlock()
	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table))
	return err
}

func (s *Scratch) exists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	return n > 0, nil
}

// RewriteTable replaces the bare identifier intermediary_table with table.
func RewriteTable(query, table string) string {
	if table == SharedTable {
		return query
	}
	quoted := QuoteIdent(table)
	// run twice: adjacent matches share their boundary character
	for i := 0; i < 2; i++ {
		query = sharedIdentRe.ReplaceAllString(query, "${1}"+quoted+"${2}")
	}
	return query
}

// columnType picks a sqlite affinity from the non-nil values of a column.
func columnType(values []any) string {
	kind := ""
	for _, v := range values {
		var k string
		switch v.(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
			k = "INTEGER"
		case float32, float64:
			k = "REAL"
		case time.Time:
			k = "TIMESTAMP"
		case []byte:
			k = "BLOB"
		default:
			k = "TEXT"
		}
		switch {
		case kind == "" || kind == k:
			kind = k
		case (kind == "INTEGER" || kind == "REAL") && (k == "INTEGER" || k == "REAL"):
			kind = "REAL"
		default:
			return "TEXT"
		}
	}
	return kind
}

func storable(v any) any {
	switch x := v.(type) {
	case map[string]any, []any:
		return fmt.Sprint(x)
	default:
		return v
	}
}
