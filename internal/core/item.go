package core

import (
	"time"

	"pretender/internal/attrvalue"
)

// Item is one row of a primary item relation.
type Item struct {
	HashKeyValue string
	SortKeyValue *string // nil when the table has no sort key
	Attributes   attrvalue.Map
	CreateDate   time.Time
	UpdateDate   time.Time
}

// Key returns the item's primary key as a standalone attribute map,
// containing only the hash (and, if present, sort) key attributes.
func (i *Item) Key(meta *TableMetadata) attrvalue.Map {
	m := attrvalue.Map{}
	if v, ok := i.Attributes[meta.HashKeyAttribute]; ok {
		m[meta.HashKeyAttribute] = v
	}
	if meta.HasSortKey() {
		if v, ok := i.Attributes[meta.SortKeyAttribute]; ok {
			m[meta.SortKeyAttribute] = v
		}
	}
	return m
}

// IndexRow is one row of a GSI relation. SortKeyValue always holds the
// composite sort key described in SPEC_FULL.md §3.
type IndexRow struct {
	HashKeyValue string
	SortKeyValue string
	Attributes   attrvalue.Map
	CreateDate   time.Time
	UpdateDate   time.Time
}

// EventType identifies the kind of write a ChangeRecord captured.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventModify EventType = "MODIFY"
	EventRemove EventType = "REMOVE"
)

// ChangeRecord is one row of a stream relation.
type ChangeRecord struct {
	SequenceNumber          int64
	EventID                 string
	EventType               EventType
	EventTimestamp          time.Time
	ApproximateCreationTime int64 // epoch-ms
	CreateDate              time.Time
	HashKeyValue            string
	SortKeyValue            *string
	Keys                    attrvalue.Map
	OldImage                attrvalue.Map // nil when not captured for this view type / event
	NewImage                attrvalue.Map
	SizeBytes               int
}
