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

// ItemDAO operates on one logical table's primary item relation.
type ItemDAO struct {
	relation string
}

// NewItemDAO builds a DAO bound to relation (the physical table name from
// itemtable.ItemRelation).
func NewItemDAO(relation string) *ItemDAO {
	return &ItemDAO{relation: relation}
}

// Get fetches one item by its full primary key. Returns ErrNotFound if no
// row matches.
func (d *ItemDAO) Get(ctx context.Context, ex sqlh.Execer, hashKey string, sortKey *string) (*core.Item, error) {
	row := ex.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT hash_key_value, sort_key_value, attributes_json, create_date, update_date
		 FROM %s WHERE hash_key_value = :hk AND sort_key_value = :sk`, d.relation),
		sqlh.Args{"hk": hashKey, "sk": sortKeyColumn(sortKey)})
	return scanItem(row, sortKey != nil)
}

// Put replaces whatever item (if any) occupies hashKey/sortKey with item.
// Callers that need conditional-put semantics check the condition against
// the prior image themselves (via Get) before calling Put; Put itself is
// an unconditional last-writer-wins replace.
func (d *ItemDAO) Put(ctx context.Context, ex sqlh.Execer, item *core.Item) error {
	body, err := attrvalue.ToJSON(item.Attributes)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}
	if _, err := ex.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE hash_key_value = :hk AND sort_key_value = :sk`, d.relation),
		sqlh.Args{"hk": item.HashKeyValue, "sk": sortKeyColumn(item.SortKeyValue)}); err != nil {
		return fmt.Errorf("clearing prior item: %w", err)
	}
	_, err = ex.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (hash_key_value, sort_key_value, attributes_json, create_date, update_date)
		 VALUES (:hk, :sk, %s, :cd, :ud)`, d.relation, ex.BindJSON(":attrs")),
		sqlh.Args{
			"hk":    item.HashKeyValue,
			"sk":    sortKeyColumn(item.SortKeyValue),
			"attrs": string(body),
			"cd":    item.CreateDate,
			"ud":    item.UpdateDate,
		})
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// Delete removes the item at hashKey/sortKey. It is a no-op if no such item
// exists.
func (d *ItemDAO) Delete(ctx context.Context, ex sqlh.Execer, hashKey string, sortKey *string) error {
	_, err := ex.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE hash_key_value = :hk AND sort_key_value = :sk`, d.relation),
		sqlh.Args{"hk": hashKey, "sk": sortKeyColumn(sortKey)})
	return err
}

// QueryHash returns every item sharing hashKey, ordered by sort_key_value,
// ascending or descending per scanForward. Callers apply any sort-key
// condition and filter expression themselves; this is the unfiltered range
// scan that backs Query before post-filtering.
func (d *ItemDAO) QueryHash(ctx context.Context, ex sqlh.Execer, hashKey string, hasSortKey, scanForward bool) ([]*core.Item, error) {
	order := "ASC"
	if !scanForward {
		order = "DESC"
	}
	rows, err := ex.QueryContext(ctx, fmt.Sprintf(
		`SELECT hash_key_value, sort_key_value, attributes_json, create_date, update_date
		 FROM %s WHERE hash_key_value = :hk ORDER BY sort_key_value %s`, d.relation, order),
		sqlh.Args{"hk": hashKey})
	if err != nil {
		return nil, err
	}
	return scanItems(rows, hasSortKey)
}

// ScanAll returns every item in the relation ordered by hash_key_value, then
// sort_key_value, used by the Scan operation. It applies no LIMIT; the item
// manager paginates the returned slice in process.
func (d *ItemDAO) ScanAll(ctx context.Context, ex sqlh.Execer, hasSortKey bool) ([]*core.Item, error) {
	rows, err := ex.QueryContext(ctx, fmt.Sprintf(
		`SELECT hash_key_value, sort_key_value, attributes_json, create_date, update_date
		 FROM %s ORDER BY hash_key_value, sort_key_value`, d.relation), nil)
	if err != nil {
		return nil, err
	}
	return scanItems(rows, hasSortKey)
}

// BatchGet fetches items for a set of (hash, sort) key pairs, skipping keys
// with no matching row (DynamoDB's BatchGetItem silently omits unfound
// keys rather than erroring).
func (d *ItemDAO) BatchGet(ctx context.Context, ex sqlh.Execer, keys []core.Item, hasSortKey bool) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(keys))
	for _, k := range keys {
		item, err := d.Get(ctx, ex, k.HashKeyValue, k.SortKeyValue)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func scanItem(row sqlh.Row, hasSortKey bool) (*core.Item, error) {
	var hk, attrsRaw string
	var sk sql.NullString
	var cd, ud time.Time
	if err := row.Scan(&hk, &sk, &attrsRaw, &cd, &ud); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	attrs, err := scanAttrs(attrsRaw)
	if err != nil {
		return nil, err
	}
	item := &core.Item{HashKeyValue: hk, Attributes: attrs, CreateDate: cd, UpdateDate: ud}
	if hasSortKey && sk.Valid {
		v := sk.String
		item.SortKeyValue = &v
	}
	return item, nil
}

func scanItems(rows *sql.Rows, hasSortKey bool) ([]*core.Item, error) {
	var out []*core.Item
	for rows.Next() {
		var hk, attrsRaw string
		var sk sql.NullString
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
		item := &core.Item{HashKeyValue: hk, Attributes: attrs, CreateDate: cd, UpdateDate: ud}
		if hasSortKey && sk.Valid {
			v := sk.String
			item.SortKeyValue = &v
		}
		out = append(out, item)
	}
	if err := rowsErrOrClose(rows); err != nil {
		return nil, err
	}
	return out, nil
}
