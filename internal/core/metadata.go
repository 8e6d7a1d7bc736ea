// Package core holds the domain types shared across the item engine: table
// metadata, global secondary index definitions, items, index rows, and
// change records. These are the in-memory shapes that sqlh/dao/itemtable
// read and write; the physical relations they map to are described in
// SPEC_FULL.md §3.
package core

import "time"

// ProjectionType is the policy for which non-key attributes a global
// secondary index row carries.
type ProjectionType string

const (
	ProjectionAll       ProjectionType = "ALL"
	ProjectionKeysOnly  ProjectionType = "KEYS_ONLY"
	ProjectionInclude   ProjectionType = "INCLUDE"
)

// StreamViewType is the per-table policy for what a change record carries.
type StreamViewType string

const (
	StreamViewKeysOnly         StreamViewType = "KEYS_ONLY"
	StreamViewNewImage         StreamViewType = "NEW_IMAGE"
	StreamViewOldImage         StreamViewType = "OLD_IMAGE"
	StreamViewNewAndOldImages  StreamViewType = "NEW_AND_OLD_IMAGES"
)

// GlobalSecondaryIndex describes one GSI defined on a logical table.
type GlobalSecondaryIndex struct {
	IndexName         string
	HashKeyAttribute  string
	SortKeyAttribute  string // empty if the index has no sort key
	ProjectionType    ProjectionType
	NonKeyAttributes  []string // only meaningful when ProjectionType == ProjectionInclude
}

// TableMetadata is the persisted description of one logical table, stored
// as a single row in the table_metadata relation.
type TableMetadata struct {
	Name                   string
	HashKeyAttribute       string
	SortKeyAttribute       string // empty if the table has no sort key
	GlobalSecondaryIndexes []GlobalSecondaryIndex

	TTLEnabled        bool
	TTLAttributeName  string

	StreamEnabled   bool
	StreamViewType  StreamViewType
	StreamARN       string
	StreamLabel     string

	CreateDate time.Time
}

// HasSortKey reports whether the table's primary key includes a sort key.
func (t *TableMetadata) HasSortKey() bool { return t.SortKeyAttribute != "" }

// Index looks up a GSI by name.
func (t *TableMetadata) Index(name string) (GlobalSecondaryIndex, bool) {
	for _, idx := range t.GlobalSecondaryIndexes {
		if idx.IndexName == name {
			return idx, true
		}
	}
	return GlobalSecondaryIndex{}, false
}
