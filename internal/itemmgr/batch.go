package itemmgr

import (
	"context"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
)

const (
	maxBatchGetKeys    = 100
	maxBatchWriteItems = 25
)

// BatchGetInput requests a set of keys grouped by table.
type BatchGetInput struct {
	// RequestItems maps table name to the keys requested from it.
	RequestItems map[string][]attrvalue.Map
}

// BatchGetOutput carries the found items grouped by table. Keys with no
// matching row are silently omitted, matching the hosted service.
type BatchGetOutput struct {
	Responses map[string][]attrvalue.Map
}

// BatchGetItem fetches up to 100 keys across any number of tables,
// non-transactionally, applying TTL expiry-on-read per item.
func (m *Manager) BatchGetItem(ctx context.Context, in BatchGetInput) (*BatchGetOutput, error) {
	m.log.Debug("BatchGetItem", zap.Int("tables", len(in.RequestItems)))
	total := 0
	for _, keys := range in.RequestItems {
		total += len(keys)
	}
	if total == 0 {
		return nil, apierr.New(apierr.KindValidation, "batchGet requires at least one key")
	}
	if total > maxBatchGetKeys {
		return nil, apierr.New(apierr.KindValidation, "batchGet accepts at most %d keys, got %d", maxBatchGetKeys, total)
	}

	out := &BatchGetOutput{Responses: map[string][]attrvalue.Map{}}
	for table, keys := range in.RequestItems {
		for _, key := range keys {
			res, err := m.GetItem(ctx, GetItemInput{TableName: table, Key: key})
			if err != nil {
				return nil, err
			}
			if res.Found {
				out.Responses[table] = append(out.Responses[table], res.Item)
			}
		}
	}
	return out, nil
}

// WriteRequest is one entry of a BatchWriteItem call: exactly one of Put or
// Delete is set.
type WriteRequest struct {
	Put    attrvalue.Map // full item to write
	Delete attrvalue.Map // key of the item to remove
}

// BatchWriteInput requests a set of puts/deletes grouped by table.
type BatchWriteInput struct {
	RequestItems map[string][]WriteRequest
}

// BatchWriteOutput carries requests that could not be processed.
// Non-atomic: per SPEC_FULL.md §5, each request is applied independently
// and a single item's failure does not roll back the others.
type BatchWriteOutput struct {
	UnprocessedItems map[string][]WriteRequest
}

// BatchWriteItem applies up to 25 puts/deletes across any number of
// tables. Each request runs as its own single-item write (the same
// transaction discipline as PutItem/DeleteItem); a request that fails is
// returned in UnprocessedItems rather than aborting the batch.
func (m *Manager) BatchWriteItem(ctx context.Context, in BatchWriteInput) (*BatchWriteOutput, error) {
	m.log.Debug("BatchWriteItem", zap.Int("tables", len(in.RequestItems)))
	total := 0
	for _, reqs := range in.RequestItems {
		total += len(reqs)
	}
	if total == 0 {
		return nil, apierr.New(apierr.KindValidation, "batchWrite requires at least one request")
	}
	if total > maxBatchWriteItems {
		return nil, apierr.New(apierr.KindValidation, "batchWrite accepts at most %d requests, got %d", maxBatchWriteItems, total)
	}

	out := &BatchWriteOutput{UnprocessedItems: map[string][]WriteRequest{}}
	for table, reqs := range in.RequestItems {
		for _, req := range reqs {
			var err error
			switch {
			case req.Put != nil:
				_, err = m.PutItem(ctx, PutItemInput{TableName: table, Item: req.Put})
			case req.Delete != nil:
				_, err = m.DeleteItem(ctx, DeleteItemInput{TableName: table, Key: req.Delete})
			default:
				err = apierr.New(apierr.KindValidation, "write request must set Put or Delete")
			}
			if err != nil {
				m.log.Error("batch write request failed", zap.String("table", table), zap.Error(err))
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
			}
		}
	}
	return out, nil
}
