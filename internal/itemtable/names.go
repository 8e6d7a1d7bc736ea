// Package itemtable is the item-table manager from SPEC_FULL.md §4.2:
// idempotent DDL for the primary, index, and stream relations backing a
// logical table, and relation-name sanitizing.
//
// DDL generation is dialect-pluggable through a small registry modeled on
// the teacher's internal/dialect (dialect.RegisterDialect / GetDialect),
// adapted from "diff two user schemas and generate ALTER statements" to
// "generate the fixed CREATE TABLE shape for an item/index/stream relation
// in the target dialect".
package itemtable

import (
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Sanitize reduces a logical table or index name to the charset a SQL
// identifier can safely hold: [a-zA-Z0-9_-], lowercased.
func Sanitize(name string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(name, "_"))
}

// ItemRelation returns the physical relation name for a logical table's
// primary item relation.
func ItemRelation(table string) string {
	return "pdb_item_" + Sanitize(table)
}

// IndexRelation returns the physical relation name for a GSI.
func IndexRelation(table, index string) string {
	return "pdb_item_" + Sanitize(table) + "_gsi_" + Sanitize(index)
}

// StreamRelation returns the physical relation name for a table's stream.
func StreamRelation(table string) string {
	return "pdb_stream_" + Sanitize(table)
}
