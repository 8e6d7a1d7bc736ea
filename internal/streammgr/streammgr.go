// Package streammgr implements the stream consumption surface from
// SPEC_FULL.md §4.7: describeStream, listStreams, getShardIterator, and
// getRecords over the single-shard-per-table stream relation
// internal/streamcapture writes to.
//
// Pretender models exactly one shard per table stream (no re-sharding, no
// parent/child shard lineage) — the shard iterator is an opaque base64
// token encoding the stream's table name and the sequence number to resume
// after, rather than a real hosted-service shard tree.
package streammgr

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/itemtable"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
)

// TableFromStreamARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:us-east-1:000000000000:table/<name>/stream/<epoch-ms>:
// the table name is the third-from-last '/'-delimited segment.
func TableFromStreamARN(arn string) (string, error) {
	parts := strings.Split(arn, "/")
	if len(parts) < 3 {
		return "", apierr.New(apierr.KindValidation, "malformed stream ARN %q", arn)
	}
	return parts[len(parts)-3], nil
}

// IteratorType selects where a shard iterator starts reading.
type IteratorType string

const (
	IteratorTrimHorizon     IteratorType = "TRIM_HORIZON"
	IteratorLatest          IteratorType = "LATEST"
	IteratorAfterSequence   IteratorType = "AFTER_SEQUENCE_NUMBER"
	IteratorAtSequence      IteratorType = "AT_SEQUENCE_NUMBER"
)

// Manager serves stream description and record retrieval.
type Manager struct {
	h     *sqlh.Handle
	store *metadata.Store
}

// New builds a Manager.
func New(h *sqlh.Handle, store *metadata.Store) *Manager {
	return &Manager{h: h, store: store}
}

// DescribeStream returns a table's stream metadata, or TableNotFound /
// ValidationException if the table has no stream enabled.
func (m *Manager) DescribeStream(ctx context.Context, table string) (*core.TableMetadata, error) {
	meta, err := m.store.Get(ctx, table)
	if err != nil {
		return nil, apierr.Wrap(err, "loading metadata for %q", table)
	}
	if meta == nil {
		return nil, apierr.TableNotFound(table)
	}
	if !meta.StreamEnabled {
		return nil, apierr.New(apierr.KindValidation, "table %q does not have a stream enabled", table)
	}
	return meta, nil
}

// ListStreams returns every table with streaming enabled.
func (m *Manager) ListStreams(ctx context.Context) ([]*core.TableMetadata, error) {
	tables, err := m.store.ListStreamEnabled(ctx)
	if err != nil {
		return nil, apierr.Wrap(err, "listing streams")
	}
	return tables, nil
}

// shardIterator is the opaque token's decoded payload.
type shardIterator struct {
	Table      string `json:"table"`
	AfterSeq   int64  `json:"afterSeq"`
}

func encodeIterator(it shardIterator) string {
	b, _ := json.Marshal(it)
	return base64.URLEncoding.EncodeToString(b)
}

func decodeIterator(token string) (shardIterator, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return shardIterator{}, apierr.New(apierr.KindValidation, "malformed shard iterator")
	}
	var it shardIterator
	if err := json.Unmarshal(raw, &it); err != nil {
		return shardIterator{}, apierr.New(apierr.KindValidation, "malformed shard iterator")
	}
	return it, nil
}

// GetShardIterator builds an opaque iterator token for table, positioned
// per iterType. sequenceNumber is required for AFTER_SEQUENCE_NUMBER and
// AT_SEQUENCE_NUMBER, ignored otherwise.
func (m *Manager) GetShardIterator(ctx context.Context, table string, iterType IteratorType, sequenceNumber int64) (string, error) {
	meta, err := m.DescribeStream(ctx, table)
	if err != nil {
		return "", err
	}

	switch iterType {
	case IteratorTrimHorizon:
		return encodeIterator(shardIterator{Table: meta.Name, AfterSeq: 0}), nil
	case IteratorLatest:
		// AfterSeq is consumed by GetRecords as an exclusive "sequence_number >
		// :after" bound, so it holds the last sequence number already
		// considered read, not the next one to return. LATEST must start
		// strictly after the current max, which AfterSeq: maxSeq already gives
		// under that exclusive comparison; storing maxSeq+1 here would instead
		// skip the very next record written (maxSeq+1 itself), since it would
		// no longer satisfy "> maxSeq+1". This mirrors AT_SEQUENCE_NUMBER
		// below, which likewise stores sequenceNumber-1 to keep the target
		// record inclusive under the same exclusive read.
		maxSeq, err := m.maxSequence(ctx, meta.Name)
		if err != nil {
			return "", err
		}
		return encodeIterator(shardIterator{Table: meta.Name, AfterSeq: maxSeq}), nil
	case IteratorAfterSequence:
		return encodeIterator(shardIterator{Table: meta.Name, AfterSeq: sequenceNumber}), nil
	case IteratorAtSequence:
		return encodeIterator(shardIterator{Table: meta.Name, AfterSeq: sequenceNumber - 1}), nil
	default:
		return "", apierr.New(apierr.KindValidation, "unknown shard iterator type %q", iterType)
	}
}

// ShardDescription describes the single logical shard backing a table's
// stream, per spec.md §4.7.
type ShardDescription struct {
	ShardID          string
	StartingSequence int64
	EndingSequence   *int64 // nil when the shard has never captured a record
}

// DescribeShard returns the table's single shard's sequence-number range:
// starting = min(sequence), ending = max(sequence) or nil if the stream
// relation is empty.
func (m *Manager) DescribeShard(ctx context.Context, table string) (*ShardDescription, error) {
	relation := itemtable.StreamRelation(table)
	row := m.h.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(MIN(sequence_number), 0), MAX(sequence_number), COUNT(*) FROM %s`, relation), nil)
	var start int64
	var end sql.NullInt64
	var count int64
	if err := row.Scan(&start, &end, &count); err != nil {
		return nil, apierr.Wrap(err, "describing shard for %q", table)
	}
	desc := &ShardDescription{ShardID: "shard-00000", StartingSequence: start}
	if count > 0 && end.Valid {
		e := end.Int64
		desc.EndingSequence = &e
	}
	return desc, nil
}

func (m *Manager) maxSequence(ctx context.Context, table string) (int64, error) {
	relation := itemtable.StreamRelation(table)
	row := m.h.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(sequence_number), 0) FROM %s`, relation), nil)
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, apierr.Wrap(err, "reading max sequence number for %q", table)
	}
	return max, nil
}

// GetRecords decodes token, fetches up to limit records after its
// position, and returns them alongside the next iterator token. The next
// token is empty when this call returned no records, signalling
// end-of-shard; otherwise it is non-empty, carrying the last returned
// record's sequence number for the next long-poll.
func (m *Manager) GetRecords(ctx context.Context, token string, limit int) ([]*core.ChangeRecord, string, error) {
	it, err := decodeIterator(token)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}

	relation := itemtable.StreamRelation(it.Table)
	rows, err := m.h.QueryContext(ctx, fmt.Sprintf(
		`SELECT sequence_number, event_id, event_type, event_timestamp, approximate_creation_time,
		   create_date, hash_key_value, sort_key_value, keys_json, old_image_json, new_image_json, size_bytes
		 FROM %s WHERE sequence_number > :after ORDER BY sequence_number ASC LIMIT :limit`, relation),
		sqlh.Args{"after": it.AfterSeq, "limit": limit})
	if err != nil {
		return nil, "", apierr.Wrap(err, "querying stream records for %q", it.Table)
	}
	defer rows.Close()

	var out []*core.ChangeRecord
	lastSeq := it.AfterSeq
	for rows.Next() {
		var seq int64
		var eventID, eventType, hashKey, keysRaw string
		var sk, oldRaw, newRaw sql.NullString
		var eventTS, createDate time.Time
		var approxCreation int64
		var sizeBytes int
		if err := rows.Scan(&seq, &eventID, &eventType, &eventTS, &approxCreation,
			&createDate, &hashKey, &sk, &keysRaw, &oldRaw, &newRaw, &sizeBytes); err != nil {
			return nil, "", apierr.Wrap(err, "scanning stream record")
		}
		keys, err := attrvalue.FromJSON([]byte(keysRaw))
		if err != nil {
			return nil, "", apierr.Wrap(err, "decoding stream record keys")
		}
		var oldImage, newImage attrvalue.Map
		if oldRaw.Valid {
			if oldImage, err = attrvalue.FromJSON([]byte(oldRaw.String)); err != nil {
				return nil, "", apierr.Wrap(err, "decoding stream record old image")
			}
		}
		if newRaw.Valid {
			if newImage, err = attrvalue.FromJSON([]byte(newRaw.String)); err != nil {
				return nil, "", apierr.Wrap(err, "decoding stream record new image")
			}
		}
		var skPtr *string
		if sk.Valid && sk.String != "" {
			v := sk.String
			skPtr = &v
		}
		out = append(out, &core.ChangeRecord{
			SequenceNumber:          seq,
			EventID:                 eventID,
			EventType:               core.EventType(eventType),
			EventTimestamp:          eventTS,
			ApproximateCreationTime: approxCreation,
			CreateDate:              createDate,
			HashKeyValue:            hashKey,
			SortKeyValue:            skPtr,
			Keys:                    keys,
			OldImage:                oldImage,
			NewImage:                newImage,
			SizeBytes:               sizeBytes,
		})
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, "", apierr.Wrap(err, "reading stream records")
	}

	if len(out) == 0 {
		return out, "", nil
	}
	next := encodeIterator(shardIterator{Table: it.Table, AfterSeq: lastSeq})
	return out, next, nil
}

// PruneOlderThan deletes every change record in table's stream relation
// with an event timestamp before cutoff, returning the number removed.
// Used by the stream sweeper (SPEC_FULL.md §4.8) to bound the relation's
// growth to a 24-hour retention window.
func (m *Manager) PruneOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	relation := itemtable.StreamRelation(table)
	res, err := m.h.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE event_timestamp < :cutoff`, relation),
		sqlh.Args{"cutoff": cutoff})
	if err != nil {
		return 0, apierr.Wrap(err, "pruning stream records for %q", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierr.Wrap(err, "reading rows affected while pruning %q", table)
	}
	return n, nil
}
