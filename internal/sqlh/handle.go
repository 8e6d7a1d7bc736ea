// Package sqlh is the thin SQL handle described in SPEC_FULL.md §2/§4: a
// wrapper over a *sql.DB/*sql.Tx pair with named-parameter binding and a
// dialect flag deciding whether JSON columns are bound raw (sqlite, text
// column) or cast to the native JSON type (Postgres, jsonb column). The SQL
// engine itself — Postgres in production, sqlite in memory for tests — is
// an external collaborator reached only through this package.
//
// Grounded on the teacher's apply.Applier (database/sql connection
// lifecycle, context-scoped execution) and its internal/dialect registry
// (dialect-keyed construction), adapted from "generate migration DDL for a
// dialect" to "bind runtime DML for a dialect".
package sqlh

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect selects the SQL engine in use. It governs named-parameter syntax
// and JSON column handling.
type Dialect string

const (
	// DialectPostgres targets production PostgreSQL: $1-style placeholders,
	// jsonb columns.
	DialectPostgres Dialect = "postgres"
	// DialectSQLite targets the in-memory engine used by unit tests:
	// ?-style placeholders, text columns holding JSON.
	DialectSQLite Dialect = "sqlite"
)

// Execer is satisfied by both *Handle (a fresh connection per call) and *Tx
// (a caller-supplied transaction), letting DAO operations be written once
// against either form per SPEC_FULL.md §4.3.
type Execer interface {
	ExecContext(ctx context.Context, query string, args Args) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args Args) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args Args) Row
	Dialect() Dialect
	JSONColumnType() string
	BindJSON(expr string) string
}

// Row is the single-row scan result of QueryRowContext. It is satisfied by
// *sql.Row; errRow below satisfies it for bind failures discovered before a
// query could even be issued.
type Row interface {
	Scan(dest ...any) error
}

// errRow reports a bind error (e.g. a missing named parameter) through the
// same Scan-based interface a real *sql.Row uses, so callers don't need a
// separate error return from QueryRowContext.
type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

// Args is a named-parameter argument set built with the "name" -> value
// pairs a caller supplies; bind resolves :name tokens against it in the
// order the tokens appear in the query.
type Args map[string]any

// Handle wraps a *sql.DB and the dialect flag. It is safe for concurrent
// use; it holds no per-request mutable state per SPEC_FULL.md §5.
type Handle struct {
	db      *sql.DB
	dialect Dialect
}

// Open wraps an already-opened *sql.DB. The caller selects the driver
// ("postgres" via github.com/lib/pq in production, "sqlite3" via
// github.com/mattn/go-sqlite3 for in-memory tests).
func Open(db *sql.DB, dialect Dialect) *Handle {
	return &Handle{db: db, dialect: dialect}
}

// DB exposes the underlying *sql.DB, e.g. for Ping or Close.
func (h *Handle) DB() *sql.DB { return h.db }

// Dialect reports which SQL engine this handle targets.
func (h *Handle) Dialect() Dialect { return h.dialect }

// JSONColumnType returns the DDL column type for a JSON attribute payload.
func (h *Handle) JSONColumnType() string {
	if h.dialect == DialectPostgres {
		return "jsonb"
	}
	return "text"
}

// BindJSON wraps a bound parameter expression with whatever cast the
// dialect needs to treat it as JSON. Postgres needs an explicit ::jsonb
// cast for jsonb columns bound as text; sqlite's text column needs none.
func (h *Handle) BindJSON(expr string) string {
	if h.dialect == DialectPostgres {
		return expr + "::jsonb"
	}
	return expr
}

// ExecContext runs a named-parameter statement against a fresh connection.
func (h *Handle) ExecContext(ctx context.Context, query string, args Args) (sql.Result, error) {
	q, vals, err := bind(query, args, h.dialect)
	if err != nil {
		return nil, err
	}
	return h.db.ExecContext(ctx, q, vals...)
}

// QueryContext runs a named-parameter query against a fresh connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args Args) (*sql.Rows, error) {
	q, vals, err := bind(query, args, h.dialect)
	if err != nil {
		return nil, err
	}
	return h.db.QueryContext(ctx, q, vals...)
}

// QueryRowContext runs a named-parameter single-row query against a fresh
// connection.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args Args) Row {
	q, vals, err := bind(query, args, h.dialect)
	if err != nil {
		return errRow{err}
	}
	return h.db.QueryRowContext(ctx, q, vals...)
}

// Begin starts a new transaction wrapping the same dialect.
func (h *Handle) Begin(ctx context.Context) (*Tx, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, dialect: h.dialect}, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic, matching the all-or-nothing single-item
// write discipline required by SPEC_FULL.md §5.
func (h *Handle) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := h.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Tx wraps an in-flight *sql.Tx with the same Execer surface as Handle, so
// DAO code can be written once against the Execer interface.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) Dialect() Dialect         { return t.dialect }
func (t *Tx) JSONColumnType() string   { return (&Handle{dialect: t.dialect}).JSONColumnType() }
func (t *Tx) BindJSON(expr string) string { return (&Handle{dialect: t.dialect}).BindJSON(expr) }

func (t *Tx) ExecContext(ctx context.Context, query string, args Args) (sql.Result, error) {
	q, vals, err := bind(query, args, t.dialect)
	if err != nil {
		return nil, err
	}
	return t.tx.ExecContext(ctx, q, vals...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args Args) (*sql.Rows, error) {
	q, vals, err := bind(query, args, t.dialect)
	if err != nil {
		return nil, err
	}
	return t.tx.QueryContext(ctx, q, vals...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args Args) Row {
	q, vals, err := bind(query, args, t.dialect)
	if err != nil {
		return errRow{err}
	}
	return t.tx.QueryRowContext(ctx, q, vals...)
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls back the transaction. Calling it after Commit is a no-op
// error that callers should ignore (matches database/sql semantics).
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// namedParam also matches "::type" casts (as BindJSON emits) so that bind
// can leave them untouched.
var namedParam = regexp.MustCompile(`::?([a-zA-Z_][a-zA-Z0-9_]*)`)

// bind rewrites :name tokens into the driver's native placeholder syntax,
// building an ordered argument slice, per the Design Note in SPEC_FULL.md
// §9 ("dynamic SQL with named parameters").
func bind(query string, args Args, dialect Dialect) (string, []any, error) {
	var missing []string
	n := 0
	rewritten := namedParam.ReplaceAllStringFunc(query, func(tok string) string {
		if strings.HasPrefix(tok, "::") {
			return tok
		}
		name := tok[1:]
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
			return tok
		}
		n++
		if dialect == DialectPostgres {
			return "$" + strconv.Itoa(n)
		}
		return "?"
	})
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("sqlh: missing bind value(s) for %s", strings.Join(missing, ", "))
	}

	vals := make([]any, 0, n)
	_ = namedParam.ReplaceAllStringFunc(query, func(tok string) string {
		if !strings.HasPrefix(tok, "::") {
			vals = append(vals, args[tok[1:]])
		}
		return tok
	})
	return rewritten, vals, nil
}
