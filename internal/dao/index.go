package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/sqlh"
)

// IndexDAO maintains one GSI's denormalized relation. A GSI row is keyed by
// the index's own hash/sort attributes, which may or may not be the base
// table's primary key attributes, and carries whatever attributes the
// index's ProjectionType includes (computed by the internal/projection
// package before Put is called — this DAO stores whatever Attributes it is
// given, unopinionated about projection).
type IndexDAO struct {
	relation string
}

// NewIndexDAO builds a DAO bound to relation (from itemtable.IndexRelation).
func NewIndexDAO(relation string) *IndexDAO {
	return &IndexDAO{relation: relation}
}

// Replace upserts row by the index's own key: it deletes any row stored
// under row's (HashKeyValue, SortKeyValue) and inserts row in its place.
// row must be non-nil. A row stored under a different index key (for
// example after the item's index key attributes changed) is not touched;
// callers remove that one with Delete.
func (d *IndexDAO) Replace(ctx context.Context, ex sqlh.Execer, row *core.IndexRow) error {
	body, err := attrvalue.ToJSON(row.Attributes)
	if err != nil {
		return fmt.Errorf("encoding index attributes: %w", err)
	}
	if _, err := ex.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE hash_key_value = :hk AND sort_key_value = :sk`, d.relation),
		sqlh.Args{"hk": row.HashKeyValue, "sk": row.SortKeyValue}); err != nil {
		return fmt.Errorf("clearing prior index row: %w", err)
	}
	_, err = ex.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (hash_key_value, sort_key_value, attributes_json, create_date, update_date)
		 VALUES (:hk, :sk, %s, :cd, :ud)`, d.relation, ex.BindJSON(":attrs")),
		sqlh.Args{
			"hk":    row.HashKeyValue,
			"sk":    row.SortKeyValue,
			"attrs": string(body),
			"cd":    row.CreateDate,
			"ud":    row.UpdateDate,
		})
	if err != nil {
		return fmt.Errorf("inserting index row: %w", err)
	}
	return nil
}

// Delete removes the GSI row keyed by indexHashKey/indexSortKey, if any.
func (d *IndexDAO) Delete(ctx context.Context, ex sqlh.Execer, indexHashKey, indexSortKey string) error {
	_, err := ex.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE hash_key_value = :hk AND sort_key_value = :sk`, d.relation),
		sqlh.Args{"hk": indexHashKey, "sk": indexSortKey})
	return err
}

// QueryHash returns every GSI row sharing indexHashKey, ordered by the
// index's sort key.
func (d *IndexDAO) QueryHash(ctx context.Context, ex sqlh.Execer, indexHashKey string, scanForward bool) ([]*core.IndexRow, error) {
	order := "ASC"
	if !scanForward {
		order = "DESC"
	}
	rows, err := ex.QueryContext(ctx, fmt.Sprintf(
		`SELECT hash_key_value, sort_key_value, attributes_json, create_date, update_date
		 FROM %s WHERE hash_key_value = :hk ORDER BY sort_key_value %s`, d.relation, order),
		sqlh.Args{"hk": indexHashKey})
	if err != nil {
		return nil, err
	}
	return scanIndexRows(rows)
}

// ScanAll returns every row in the GSI relation ordered by hash_key_value,
// then sort_key_value, used by
// Scan when IndexName targets this index.
func (d *IndexDAO) ScanAll(ctx context.Context, ex sqlh.Execer) ([]*core.IndexRow, error) {
	rows, err := ex.QueryContext(ctx, fmt.Sprintf(
		`SELECT hash_key_value, sort_key_value, attributes_json, create_date, update_date
		 FROM %s ORDER BY hash_key_value, sort_key_value`, d.relation), nil)
	if err != nil {
		return nil, err
	}
	return scanIndexRows(rows)
}

func scanIndexRows(rows *sql.Rows) ([]*core.IndexRow, error) {
	var out []*core.IndexRow
	for rows.Next() {
		var hk, sk, attrsRaw string
		var cd, ud time.Time
		if err := rows.Scan(&hk, &sk, &attrsRaw, &cd, &ud); err != nil {
			rows.Close()
			return nil, err
		}
		attrs, err := scanAttrs(attrsRaw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, &core.IndexRow{
			HashKeyValue: hk, SortKeyValue: sk, Attributes: attrs, CreateDate: cd, UpdateDate: ud,
		})
	}
	if err := rowsErrOrClose(rows); err != nil {
		return nil, err
	}
	return out, nil
}
