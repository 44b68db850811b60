// Package datastore gives the tools read access to the primary database and
// a per-session scratch table holding the latest query result.
package datastore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/elee1766/dataagent/src/sqlguard"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name" db:"column_name"`
	Type       string `json:"type" db:"data_type"`
	Nullable   bool   `json:"nullable" db:"nullable"`
	PrimaryKey bool   `json:"primary_key" db:"primary_key"`
}

// Schema maps table names to their columns in declaration order.
type Schema map[string][]Column

// Tables returns the table names sorted.
func (s Schema) Tables() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Primary is the read-only source database the agent answers questions about.
type Primary struct {
	db     *sql.DB
	driver string
}

// OpenPrimary opens the primary database with one of the supported drivers.
func OpenPrimary(driver, dsn string) (*Primary, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return NewPrimary(db, driver), nil
}

// NewPrimary wraps an already opened database.
func NewPrimary(db *sql.DB, driver string) *Primary {
	return &Primary{db: db, driver: driver}
}

func (p *Primary) DB() *sql.DB {
	return p.db
}

func (p *Primary) Driver() string {
	return p.driver
}

func (p *Primary) Close() error {
	return p.db.Close()
}

// Ping verifies the connection.
func (p *Primary) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Query validates the statement and runs it.
func (p *Primary) Query(ctx context.Context, query string) (*ResultSet, error) {
	q, err := sqlguard.Validate(query)
	if err != nil {
		return nil, err
	}

	return p.queryReadOnly(ctx, q)
}

// queryReadOnly runs q on a connection that refuses writes: sqlite through
// PRAGMA query_only, postgres and mysql through a read-only transaction.
func (p *Primary) queryReadOnly(ctx context.Context, q string) (*ResultSet, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if p.driver == DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return nil, fmt.Errorf("failed to enter read-only mode: %w", err)
		}
		defer func() {
			if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
				// never hand a read-only connection back to the pool
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
		}()
		rows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		return scanResultSet(rows)
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanResultSet(rows)
}

// Schema introspects every user table.
func (p *Primary) Schema(ctx context.Context) (Schema, error) {
	switch p.driver {
	case DriverSQLite:
		return sqliteSchema(ctx, p.db)
	case DriverPostgres:
		return infoSchema(ctx, p.db, postgresSchemaQuery)
	case DriverMySQL:
		return infoSchema(ctx, p.db, mysqlSchemaQuery)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, p.driver)
	}
}

// SchemaText renders the schema for inclusion in a prompt.
func (p *Primary) SchemaText(ctx context.Context) (string, error) {
	schema, err := p.Schema(ctx)
	if err != nil {
		return "", err
	}
	return FormatSchema(schema), nil
}

// FormatSchema renders one line per column under each table heading.
func FormatSchema(schema Schema) string {
	var b strings.Builder
	for _, table := range schema.Tables() {
		fmt.Fprintf(&b, "Table: %s\n", table)
		for _, col := range schema[table] {
			fmt.Fprintf(&b, "  - %s (%s)", col.Name, col.Type)
			if col.PrimaryKey {
				b.WriteString(" primary key")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

type sqliteColumn struct {
	CID       int    `db:"cid"`
	Name      string `db:"name"`
	Type      string `db:"type"`
	NotNull   int    `db:"notnull"`
	DfltValue any    `db:"dflt_value"`
	PK        int    `db:"pk"`
}

func sqliteSchema(ctx context.Context, db sqlscan.Querier) (Schema, error) {
	var tables []string
	err := sqlscan.Select(ctx, db, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	schema := make(Schema, len(tables))
	for _, table := range tables {
		var cols []sqliteColumn
		if err := sqlscan.Select(ctx, db, &cols, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table))); err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		out := make([]Column, 0, len(cols))
		for _, c := range cols {
			out = append(out, Column{
				Name:       c.Name,
				Type:       c.Type,
				Nullable:   c.NotNull == 0 && c.PK == 0,
				PrimaryKey: c.PK > 0,
			})
		}
		schema[table] = out
	}
	return schema, nil
}

const postgresSchemaQuery = `
SELECT c.table_name, c.column_name, c.data_type,
	c.is_nullable = 'YES' AS nullable,
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	) AS primary_key
FROM information_schema.columns c
WHERE c.table_schema = current_schema()
ORDER BY c.table_name, c.ordinal_position`

const mysqlSchemaQuery = `
SELECT table_name AS table_name, column_name AS column_name, data_type AS data_type,
	is_nullable = 'YES' AS nullable,
	column_key = 'PRI' AS primary_key
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`

type infoColumn struct {
	Table string `db:"table_name"`
	Column
}

func infoSchema(ctx context.Context, db sqlscan.Querier, query string) (Schema, error) {
	var cols []infoColumn
	if err := sqlscan.Select(ctx, db, &cols, query); err != nil {
		return nil, fmt.Errorf("failed to read information_schema: %w", err)
	}
	schema := make(Schema)
	for _, c := range cols {
		schema[c.Table] = append(schema[c.Table], c.Column)
	}
	return schema, nil
}

// QuoteIdent quotes an identifier for sqlite and postgres.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
