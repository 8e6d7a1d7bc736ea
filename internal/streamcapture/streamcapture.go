// Package streamcapture writes one change record per write into a table's
// stream relation, per SPEC_FULL.md §4.7. It is invoked by internal/itemmgr
// inside the same SQL transaction as the primary-row write, so a capture
// failure rolls back the whole write.
package streamcapture

import (
	"context"
	"fmt"
	"time"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/itemtable"
	"pretender/internal/sqlh"
)

// Capturer inserts change records into one table's stream relation.
type Capturer struct {
	relation string
}

// New builds a Capturer bound to table (via itemtable.StreamRelation).
func New(table string) *Capturer {
	return &Capturer{relation: itemtable.StreamRelation(table)}
}

// Capture records one change, projecting old/new images per viewType. keys
// always carries the item's primary key attributes. oldImage/newImage may
// be nil (insert has no old image, remove has no new image).
func (c *Capturer) Capture(
	ctx context.Context, ex sqlh.Execer,
	viewType core.StreamViewType, eventType core.EventType,
	hashKey string, sortKey *string,
	keys, oldImage, newImage attrvalue.Map,
	eventTime time.Time,
) error {
	var oldOut, newOut attrvalue.Map
	switch viewType {
	case core.StreamViewKeysOnly:
	case core.StreamViewOldImage:
		oldOut = oldImage
	case core.StreamViewNewImage:
		newOut = newImage
	case core.StreamViewNewAndOldImages:
		oldOut, newOut = oldImage, newImage
	}
	if eventType == core.EventInsert {
		oldOut = nil
	}
	if eventType == core.EventRemove {
		newOut = nil
	}

	keysJSON, err := attrvalue.ToJSON(keys)
	if err != nil {
		return fmt.Errorf("encoding stream record keys: %w", err)
	}
	var oldJSON, newJSON []byte
	if oldOut != nil {
		if oldJSON, err = attrvalue.ToJSON(oldOut); err != nil {
			return fmt.Errorf("encoding stream record old image: %w", err)
		}
	}
	if newOut != nil {
		if newJSON, err = attrvalue.ToJSON(newOut); err != nil {
			return fmt.Errorf("encoding stream record new image: %w", err)
		}
	}

	size := len(keysJSON) + len(oldJSON) + len(newJSON)

	args := sqlh.Args{
		"event_id":    fmt.Sprintf("%s-%s-%d", hashKey, sortKeyOrEmpty(sortKey), eventTime.UnixNano()),
		"event_type":  string(eventType),
		"event_ts":    eventTime,
		"approx_ts":   eventTime.UnixMilli(),
		"create_date": eventTime,
		"hk":          hashKey,
		"sk":          sortKeyOrEmpty(sortKey),
		"keys":        string(keysJSON),
		"old":         nullableJSON(oldJSON),
		"new":         nullableJSON(newJSON),
		"size":        size,
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (event_id, event_type, event_timestamp, approximate_creation_time,
		   create_date, hash_key_value, sort_key_value, keys_json, old_image_json, new_image_json, size_bytes)
		 VALUES (:event_id, :event_type, :event_ts, :approx_ts, :create_date, :hk, :sk, %s, %s, %s, :size)`,
		c.relation, ex.BindJSON(":keys"), ex.BindJSON(":old"), ex.BindJSON(":new"))
	_, err = ex.ExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("inserting stream record: %w", err)
	}
	return nil
}

func sortKeyOrEmpty(sk *string) string {
	if sk == nil {
		return ""
	}
	return *sk
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
