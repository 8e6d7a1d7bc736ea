// Package dao is the item/index data-access layer from SPEC_FULL.md §4.3:
// thin CRUD and range-scan operations over the relations itemtable creates,
// written once against the sqlh.Execer interface so every operation has a
// fresh-connection form (pass a *sqlh.Handle) and a caller-transaction form
// (pass an in-flight *sqlh.Tx) for free.
//
// Grounded on the teacher's split between apply.Applier (ad-hoc execution)
// and the narrower surface its migration runner uses inside a transaction;
// here both forms are literally the same method set via sqlh.Execer.
package dao

import (
	"database/sql"
	"fmt"

	"pretender/internal/attrvalue"
)

// noSortKey is the sentinel stored in sort_key_value for tables and indexes
// that have no sort key attribute, so the (hash_key_value, sort_key_value)
// primary key still enforces one-row-per-hash-key uniqueness. SQL NULL is
// avoided for this column specifically because NULL is never equal to NULL
// under a PRIMARY KEY/UNIQUE constraint, which would silently defeat it.
const noSortKey = ""

func sortKeyColumn(sk *string) string {
	if sk == nil {
		return noSortKey
	}
	return *sk
}

// ErrNotFound is returned by ItemDAO.Get when no row matches.
var ErrNotFound = fmt.Errorf("dao: item not found")

func scanAttrs(raw string) (attrvalue.Map, error) {
	m, err := attrvalue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding stored attributes: %w", err)
	}
	return m, nil
}

func rowsErrOrClose(rows *sql.Rows) error {
	err := rows.Err()
	rows.Close()
	return err
}
