// Package pgddl registers the PostgreSQL item-table DDL generator.
package pgddl

import (
	"fmt"

	"pretender/internal/itemtable"
	"pretender/internal/sqlh"
)

func init() {
	itemtable.Register(sqlh.DialectPostgres, New)
}

type generator struct{}

// New constructs the Postgres DDL generator.
func New() itemtable.Generator { return &generator{} }

func (g *generator) CreateItemRelation(relation string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			hash_key_value TEXT NOT NULL,
			sort_key_value TEXT,
			attributes_json JSONB NOT NULL,
			create_date TIMESTAMPTZ NOT NULL,
			update_date TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (hash_key_value, sort_key_value)
		)`, relation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_hash_idx ON %s (hash_key_value)`, relation, relation),
	}
}

func (g *generator) CreateIndexRelation(relation string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			hash_key_value TEXT NOT NULL,
			sort_key_value TEXT NOT NULL,
			attributes_json JSONB NOT NULL,
			create_date TIMESTAMPTZ NOT NULL,
			update_date TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (hash_key_value, sort_key_value)
		)`, relation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_hash_idx ON %s (hash_key_value)`, relation, relation),
	}
}

func (g *generator) CreateStreamRelation(relation string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			sequence_number BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			approximate_creation_time BIGINT NOT NULL,
			create_date TIMESTAMPTZ NOT NULL,
			hash_key_value TEXT NOT NULL,
			sort_key_value TEXT,
			keys_json JSONB NOT NULL,
			old_image_json JSONB,
			new_image_json JSONB,
			size_bytes INTEGER NOT NULL
		)`, relation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ts_idx ON %s (event_timestamp)`, relation, relation),
	}
}

func (g *generator) DropRelation(relation string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, relation)
}

func (g *generator) ListRelationsByPrefix(prefix string) (string, sqlh.Args) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name LIKE :prefix`,
		sqlh.Args{"prefix": prefix + "%"}
}
