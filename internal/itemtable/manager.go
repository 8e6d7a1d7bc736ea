package itemtable

import (
	"context"
	"fmt"
	"strings"

	"pretender/internal/core"
	"pretender/internal/sqlh"
)

// Manager owns the DDL lifecycle of item/index/stream relations.
type Manager struct {
	h   *sqlh.Handle
	gen Generator
}

// NewManager builds a Manager for h's dialect. It fails fast if no
// Generator is registered for that dialect (the relevant pgddl/sqliteddl
// package was not blank-imported).
func NewManager(h *sqlh.Handle) (*Manager, error) {
	gen, err := GeneratorFor(h.Dialect())
	if err != nil {
		return nil, err
	}
	return &Manager{h: h, gen: gen}, nil
}

// CreatePrimary creates the primary item relation for a new logical table.
func (m *Manager) CreatePrimary(ctx context.Context, table string) error {
	return m.execAll(ctx, m.gen.CreateItemRelation(ItemRelation(table)))
}

// CreateIndex creates one GSI's relation.
func (m *Manager) CreateIndex(ctx context.Context, table string, idx core.GlobalSecondaryIndex) error {
	return m.execAll(ctx, m.gen.CreateIndexRelation(IndexRelation(table, idx.IndexName)))
}

// CreateStream creates a table's stream relation.
func (m *Manager) CreateStream(ctx context.Context, table string) error {
	return m.execAll(ctx, m.gen.CreateStreamRelation(StreamRelation(table)))
}

func (m *Manager) execAll(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := m.h.ExecContext(ctx, stmt, nil); err != nil {
			return fmt.Errorf("executing DDL %q: %w", stmt, err)
		}
	}
	return nil
}

// DropTable drops the primary relation, every index relation, and the
// stream relation owned by table, per the ownership rule in SPEC_FULL.md
// §3 ("dropping a table cascades to all of them"). Index relations are
// discovered by listing relations with the table's known prefix rather
// than trusting metadata (which may be stale if a prior DDL failed
// partway), grounded on the teacher's information_schema.tables
// introspection pattern in internal/introspect/mysql/tables.go.
func (m *Manager) DropTable(ctx context.Context, table string) error {
	prefix := ItemRelation(table)
	query, args := m.gen.ListRelationsByPrefix(prefix)
	rows, err := m.h.QueryContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("listing relations for %q: %w", table, err)
	}
	var relations []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		// The LIKE prefix also matches other tables whose names extend
		// this one; keep only the primary relation and its "_gsi_" relations.
		if name == prefix || strings.HasPrefix(name, prefix+"_gsi_") {
			relations = append(relations, name)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	relations = append(relations, StreamRelation(table))
	for _, r := range relations {
		if _, err := m.h.ExecContext(ctx, m.gen.DropRelation(r), nil); err != nil {
			return fmt.Errorf("dropping relation %q: %w", r, err)
		}
	}
	return nil
}
