package apitypes_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"pretender/internal/apitypes"
	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/itemmgr"
	"pretender/internal/streammgr"
)

func TestQueryRequestDefaultsScanIndexForward(t *testing.T) {
	req := apitypes.QueryRequest{TableName: "Widgets", KeyConditionExpression: "id = :id"}
	in := req.ToInput()
	require.True(t, in.ScanForward)

	backward := false
	req.ScanIndexForward = &backward
	in = req.ToInput()
	require.False(t, in.ScanForward)
}

func TestBatchWriteItemRequestFromJSON(t *testing.T) {
	var req apitypes.BatchWriteItemRequest
	err := json.Unmarshal([]byte(`{
		"RequestItems": {
			"Widgets": [
				{"PutRequest": {"Item": {"id": {"S": "w1"}}}},
				{"DeleteRequest": {"Key": {"id": {"S": "w2"}}}}
			]
		}
	}`), &req)
	require.NoError(t, err)

	in := req.ToInput()
	require.Len(t, in.RequestItems["Widgets"], 2)
	require.Equal(t, "w1", in.RequestItems["Widgets"][0].Put["id"].S)
	require.Equal(t, "w2", in.RequestItems["Widgets"][1].Delete["id"].S)
}

func TestBatchWriteItemOutputRoundTrip(t *testing.T) {
	out := &itemmgr.BatchWriteOutput{
		UnprocessedItems: map[string][]itemmgr.WriteRequest{
			"Widgets": {
				{Put: attrvalue.Map{"id": attrvalue.String("w1")}},
				{Delete: attrvalue.Map{"id": attrvalue.String("w2")}},
			},
		},
	}
	resp := apitypes.FromBatchWriteItemOutput(out)
	require.Len(t, resp.UnprocessedItems["Widgets"], 2)
	require.NotNil(t, resp.UnprocessedItems["Widgets"][0].PutRequest)
	require.NotNil(t, resp.UnprocessedItems["Widgets"][1].DeleteRequest)
}

func TestBatchWriteItemOutputEmptyOmitsField(t *testing.T) {
	resp := apitypes.FromBatchWriteItemOutput(&itemmgr.BatchWriteOutput{})
	require.Nil(t, resp.UnprocessedItems)
}

func TestTransactWriteItemsRequestRequiresOneOperation(t *testing.T) {
	req := apitypes.TransactWriteItemsRequest{
		TransactItems: []apitypes.TransactWriteItemEntry{{}},
	}
	_, err := req.ToEntries()
	require.Error(t, err)
}

func TestTransactGetItemsResponseOmitsMissingItems(t *testing.T) {
	out := &itemmgr.TransactGetOutput{Items: []attrvalue.Map{
		{"id": attrvalue.String("found")},
		nil,
	}}
	resp := apitypes.FromTransactGetItemsOutput(out)
	require.Len(t, resp.Responses, 2)
	require.NotNil(t, resp.Responses[0].Item)
	require.Nil(t, resp.Responses[1].Item)
}

func TestGetShardIteratorRequestSequenceNumberInt(t *testing.T) {
	req := apitypes.GetShardIteratorRequest{}
	n, err := req.SequenceNumberInt()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	req.SequenceNumber = "12345"
	n, err = req.SequenceNumberInt()
	require.NoError(t, err)
	require.Equal(t, int64(12345), n)

	req.SequenceNumber = "not-a-number"
	_, err = req.SequenceNumberInt()
	require.Error(t, err)
}

func TestFromStreamDescriptionFormatsSequenceNumbers(t *testing.T) {
	meta := &core.TableMetadata{Name: "Events", StreamARN: "arn:aws:dynamodb:...:stream/123", StreamViewType: core.StreamViewNewAndOldImages}
	ending := int64(42)
	shard := &streammgr.ShardDescription{ShardID: "shard-00000", StartingSequence: 1, EndingSequence: &ending}

	resp := apitypes.FromStreamDescription(meta, shard)
	require.Equal(t, "1", resp.StreamDescription.Shards[0].SequenceNumberRange.StartingSequenceNumber)
	require.Equal(t, "42", resp.StreamDescription.Shards[0].SequenceNumberRange.EndingSequenceNumber)
}

func TestFromStreamDescriptionOpenEndedShard(t *testing.T) {
	meta := &core.TableMetadata{Name: "Events"}
	shard := &streammgr.ShardDescription{ShardID: "shard-00000", StartingSequence: 0}
	resp := apitypes.FromStreamDescription(meta, shard)
	require.Empty(t, resp.StreamDescription.Shards[0].SequenceNumberRange.EndingSequenceNumber)
}

func TestFromChangeRecordsFormatsSequenceAsString(t *testing.T) {
	records := []*core.ChangeRecord{{SequenceNumber: 7, EventID: "evt-1", EventType: core.EventInsert}}
	resp := apitypes.FromChangeRecords(records, "next-token")
	require.Equal(t, "7", resp.Records[0].Dynamodb.SequenceNumber)
	require.Equal(t, "next-token", resp.NextShardIterator)
}
