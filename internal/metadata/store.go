// Package metadata implements CRUD on the single fixed table_metadata
// relation, per SPEC_FULL.md §4 ("Metadata store"). It is the only relation
// whose name and shape are static; every other relation is named
// dynamically by internal/itemtable.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pretender/internal/core"
	"pretender/internal/sqlh"
)

const tableName = "table_metadata"

// Store is the metadata CRUD surface. It holds no cache: every call hits
// the SQL engine directly, per SPEC_FULL.md §5 ("schema changes take
// effect immediately via DDL").
type Store struct {
	h *sqlh.Handle
}

// New builds a Store over h.
func New(h *sqlh.Handle) *Store {
	return &Store{h: h}
}

// Bootstrap idempotently creates the table_metadata relation. A real
// deployment normally gets this from a migration runner (out of scope per
// SPEC_FULL.md §1); Pretender also exposes it directly so a fresh
// standalone instance can self-bootstrap.
func (s *Store) Bootstrap(ctx context.Context) error {
	jsonType := s.h.JSONColumnType()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		hash_key TEXT NOT NULL,
		sort_key TEXT,
		global_secondary_indexes %s NOT NULL,
		ttl_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		ttl_attribute_name TEXT,
		stream_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		stream_view_type TEXT,
		stream_arn TEXT,
		stream_label TEXT,
		create_date TIMESTAMP NOT NULL
	)`, tableName, jsonType)
	if _, err := s.h.ExecContext(ctx, ddl, nil); err != nil {
		return fmt.Errorf("bootstrapping %s: %w", tableName, err)
	}
	return nil
}

type gsiList []core.GlobalSecondaryIndex

// Get fetches one table's metadata by name. It returns (nil, nil) if no
// such table exists; callers map that to apierr.TableNotFound.
func (s *Store) Get(ctx context.Context, name string) (*core.TableMetadata, error) {
	row := s.h.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT name, hash_key, sort_key, global_secondary_indexes,
		       ttl_enabled, ttl_attribute_name,
		       stream_enabled, stream_view_type, stream_arn, stream_label,
		       create_date
		FROM %s WHERE name = :name`, tableName), sqlh.Args{"name": name})
	meta, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %q: %w", name, err)
	}
	return meta, nil
}

func scanRow(row sqlh.Row) (*core.TableMetadata, error) {
	var (
		name, hashKey                        string
		sortKey, ttlAttr, viewType, arn, lbl sql.NullString
		gsiJSON                              []byte
		ttlEnabled, streamEnabled            bool
		createDate                           time.Time
	)
	if err := row.Scan(&name, &hashKey, &sortKey, &gsiJSON, &ttlEnabled, &ttlAttr,
		&streamEnabled, &viewType, &arn, &lbl, &createDate); err != nil {
		return nil, err
	}
	var gsis gsiList
	if len(gsiJSON) > 0 {
		if err := json.Unmarshal(gsiJSON, &gsis); err != nil {
			return nil, fmt.Errorf("decoding global_secondary_indexes: %w", err)
		}
	}
	return &core.TableMetadata{
		Name:                   name,
		HashKeyAttribute:       hashKey,
		SortKeyAttribute:       sortKey.String,
		GlobalSecondaryIndexes: gsis,
		TTLEnabled:             ttlEnabled,
		TTLAttributeName:       ttlAttr.String,
		StreamEnabled:          streamEnabled,
		StreamViewType:         core.StreamViewType(viewType.String),
		StreamARN:              arn.String,
		StreamLabel:            lbl.String,
		CreateDate:             createDate,
	}, nil
}

// Put inserts a new table's metadata. It fails if a row with the same name
// already exists (tablemgr.CreateTable checks for an existing table first
// and reports it as a ValidationException).
func (s *Store) Put(ctx context.Context, m *core.TableMetadata) error {
	gsiJSON, err := json.Marshal(gsiList(m.GlobalSecondaryIndexes))
	if err != nil {
		return fmt.Errorf("encoding global_secondary_indexes: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(name, hash_key, sort_key, global_secondary_indexes,
		 ttl_enabled, ttl_attribute_name,
		 stream_enabled, stream_view_type, stream_arn, stream_label, create_date)
		VALUES (:name, :hash_key, :sort_key, %s,
		        :ttl_enabled, :ttl_attribute_name,
		        :stream_enabled, :stream_view_type, :stream_arn, :stream_label, :create_date)`,
		tableName, s.h.BindJSON(":gsi"))
	_, err = s.h.ExecContext(ctx, q, sqlh.Args{
		"name": m.Name, "hash_key": m.HashKeyAttribute, "sort_key": nullableString(m.SortKeyAttribute),
		"gsi": string(gsiJSON), "ttl_enabled": m.TTLEnabled, "ttl_attribute_name": nullableString(m.TTLAttributeName),
		"stream_enabled": m.StreamEnabled, "stream_view_type": nullableString(string(m.StreamViewType)),
		"stream_arn": nullableString(m.StreamARN), "stream_label": nullableString(m.StreamLabel),
		"create_date": m.CreateDate,
	})
	if err != nil {
		return fmt.Errorf("inserting metadata for %q: %w", m.Name, err)
	}
	return nil
}

// UpdateTTL toggles TTL and optionally changes the attribute name.
func (s *Store) UpdateTTL(ctx context.Context, name string, enabled bool, attr string) error {
	q := fmt.Sprintf(`UPDATE %s SET ttl_enabled = :enabled, ttl_attribute_name = :attr WHERE name = :name`, tableName)
	_, err := s.h.ExecContext(ctx, q, sqlh.Args{"enabled": enabled, "attr": nullableString(attr), "name": name})
	if err != nil {
		return fmt.Errorf("updating ttl for %q: %w", name, err)
	}
	return nil
}

// UpdateStream toggles the stream and records its ARN/label/view type.
func (s *Store) UpdateStream(ctx context.Context, name string, enabled bool, viewType core.StreamViewType, arn, label string) error {
	q := fmt.Sprintf(`UPDATE %s SET stream_enabled = :enabled, stream_view_type = :vt,
		stream_arn = :arn, stream_label = :label WHERE name = :name`, tableName)
	_, err := s.h.ExecContext(ctx, q, sqlh.Args{
		"enabled": enabled, "vt": nullableString(string(viewType)),
		"arn": nullableString(arn), "label": nullableString(label), "name": name,
	})
	if err != nil {
		return fmt.Errorf("updating stream for %q: %w", name, err)
	}
	return nil
}

// Delete removes a table's metadata row.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.h.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = :name`, tableName), sqlh.Args{"name": name})
	if err != nil {
		return fmt.Errorf("deleting metadata for %q: %w", name, err)
	}
	return nil
}

// List returns all table names, in creation order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.h.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY create_date`, tableName), nil)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ListStreamEnabled returns the metadata of every table with streams
// enabled, for use by the stream manager and the stream sweeper.
func (s *Store) ListStreamEnabled(ctx context.Context) ([]*core.TableMetadata, error) {
	rows, err := s.h.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, hash_key, sort_key, global_secondary_indexes,
		       ttl_enabled, ttl_attribute_name,
		       stream_enabled, stream_view_type, stream_arn, stream_label, create_date
		FROM %s WHERE stream_enabled = TRUE`, tableName), nil)
	if err != nil {
		return nil, fmt.Errorf("listing stream-enabled tables: %w", err)
	}
	defer rows.Close()
	var out []*core.TableMetadata
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTTLEnabled returns the metadata of every table with TTL enabled, for
// use by the TTL sweeper.
func (s *Store) ListTTLEnabled(ctx context.Context) ([]*core.TableMetadata, error) {
	rows, err := s.h.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, hash_key, sort_key, global_secondary_indexes,
		       ttl_enabled, ttl_attribute_name,
		       stream_enabled, stream_view_type, stream_arn, stream_label, create_date
		FROM %s WHERE ttl_enabled = TRUE`, tableName), nil)
	if err != nil {
		return nil, fmt.Errorf("listing ttl-enabled tables: %w", err)
	}
	defer rows.Close()
	var out []*core.TableMetadata
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
