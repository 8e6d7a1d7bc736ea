// Package sqliteddl registers the in-memory-test item-table DDL generator.
package sqliteddl

import (
	"fmt"

	"pretender/internal/itemtable"
	"pretender/internal/sqlh"
)

func init() {
	itemtable.Register(sqlh.DialectSQLite, New)
}

type generator struct{}

// New constructs the sqlite DDL generator used by unit tests.
func New() itemtable.Generator { return &generator{} }

func (g *generator) CreateItemRelation(relation string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			hash_key_value TEXT NOT NULL,
			sort_key_value TEXT,
			attributes_json TEXT NOT NULL,
			create_date DATETIME NOT NULL,
			update_date DATETIME NOT NULL,
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
			attributes_json TEXT NOT NULL,
			create_date DATETIME NOT NULL,
			update_date DATETIME NOT NULL,
			PRIMARY KEY (hash_key_value, sort_key_value)
		)`, relation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_hash_idx ON %s (hash_key_value)`, relation, relation),
	}
}

func (g *generator) CreateStreamRelation(relation string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_timestamp DATETIME NOT NULL,
			approximate_creation_time INTEGER NOT NULL,
			create_date DATETIME NOT NULL,
			hash_key_value TEXT NOT NULL,
			sort_key_value TEXT,
			keys_json TEXT NOT NULL,
			old_image_json TEXT,
			new_image_json TEXT,
			size_bytes INTEGER NOT NULL
		)`, relation),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ts_idx ON %s (event_timestamp)`, relation, relation),
	}
}

func (g *generator) DropRelation(relation string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s`, relation)
}

func (g *generator) ListRelationsByPrefix(prefix string) (string, sqlh.Args) {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE :prefix`,
		sqlh.Args{"prefix": prefix + "%"}
}
