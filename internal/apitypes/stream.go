package apitypes

import (
	"strconv"

	"pretender/internal/attrvalue"
	"pretender/internal/core"
	"pretender/internal/streammgr"
)

// DescribeStreamRequest is the wire shape of a DescribeStream call.
type DescribeStreamRequest struct {
	StreamArn string `json:"StreamArn"`
}

// ShardWire is the wire shape of one shard within a stream description.
type ShardWire struct {
	ShardId            string `json:"ShardId"`
	SequenceNumberRange struct {
		StartingSequenceNumber string `json:"StartingSequenceNumber"`
		EndingSequenceNumber   string `json:"EndingSequenceNumber,omitempty"`
	} `json:"SequenceNumberRange"`
}

// DescribeStreamResponse is the wire shape of a DescribeStream response.
type DescribeStreamResponse struct {
	StreamDescription struct {
		StreamArn  string      `json:"StreamArn"`
		TableName  string      `json:"TableName"`
		StreamViewType string  `json:"StreamViewType"`
		Shards     []ShardWire `json:"Shards"`
	} `json:"StreamDescription"`
}

// FromStreamDescription builds the wire response from a table's metadata
// and its shard's sequence-number range.
func FromStreamDescription(meta *core.TableMetadata, shard *streammgr.ShardDescription) DescribeStreamResponse {
	var resp DescribeStreamResponse
	resp.StreamDescription.StreamArn = meta.StreamARN
	resp.StreamDescription.TableName = meta.Name
	resp.StreamDescription.StreamViewType = string(meta.StreamViewType)
	w := ShardWire{ShardId: shard.ShardID}
	w.SequenceNumberRange.StartingSequenceNumber = formatSeq(shard.StartingSequence)
	if shard.EndingSequence != nil {
		w.SequenceNumberRange.EndingSequenceNumber = formatSeq(*shard.EndingSequence)
	}
	resp.StreamDescription.Shards = []ShardWire{w}
	return resp
}

// formatSeq renders a sequence number as the hosted SDK does: a decimal
// string, since DynamoDB's SequenceNumber is a numeric string rather than
// a JSON number (precision beyond 2^53 would not round-trip otherwise).
func formatSeq(n int64) string { return strconv.FormatInt(n, 10) }

// ListStreamsRequest is the wire shape of a ListStreams call.
type ListStreamsRequest struct {
	TableName string `json:"TableName,omitempty"`
}

// StreamWire is one entry of a ListStreams response.
type StreamWire struct {
	StreamArn string `json:"StreamArn"`
	TableName string `json:"TableName"`
}

type ListStreamsResponse struct {
	Streams []StreamWire `json:"Streams"`
}

func FromStreamList(tables []*core.TableMetadata) ListStreamsResponse {
	resp := ListStreamsResponse{}
	for _, m := range tables {
		resp.Streams = append(resp.Streams, StreamWire{StreamArn: m.StreamARN, TableName: m.Name})
	}
	return resp
}

// GetShardIteratorRequest is the wire shape of a GetShardIterator call.
type GetShardIteratorRequest struct {
	StreamArn          string `json:"StreamArn"`
	ShardId            string `json:"ShardId"`
	ShardIteratorType  string `json:"ShardIteratorType"`
	SequenceNumber     string `json:"SequenceNumber,omitempty"`
}

type GetShardIteratorResponse struct {
	ShardIterator string `json:"ShardIterator"`
}

// SequenceNumberInt parses SequenceNumber for iterator types that require
// it (AT_SEQUENCE_NUMBER, AFTER_SEQUENCE_NUMBER); returns 0 if unset.
func (r GetShardIteratorRequest) SequenceNumberInt() (int64, error) {
	if r.SequenceNumber == "" {
		return 0, nil
	}
	return strconv.ParseInt(r.SequenceNumber, 10, 64)
}

// GetRecordsRequest is the wire shape of a GetRecords call.
type GetRecordsRequest struct {
	ShardIterator string `json:"ShardIterator"`
	Limit         int    `json:"Limit,omitempty"`
}

// RecordWire is one entry of a GetRecords response.
type RecordWire struct {
	EventID   string `json:"eventID"`
	EventName string `json:"eventName"`
	Dynamodb  struct {
		Keys           attrvalue.Map `json:"Keys"`
		OldImage       attrvalue.Map `json:"OldImage,omitempty"`
		NewImage       attrvalue.Map `json:"NewImage,omitempty"`
		SequenceNumber string        `json:"SequenceNumber"`
		SizeBytes      int           `json:"SizeBytes"`
		ApproximateCreationDateTime int64 `json:"ApproximateCreationDateTime"`
	} `json:"dynamodb"`
}

// GetRecordsResponse is the wire shape of a GetRecords response.
// NextShardIterator is empty (omitted) at end-of-shard.
type GetRecordsResponse struct {
	Records            []RecordWire `json:"Records"`
	NextShardIterator  string       `json:"NextShardIterator,omitempty"`
}

func FromChangeRecords(records []*core.ChangeRecord, nextIterator string) GetRecordsResponse {
	resp := GetRecordsResponse{NextShardIterator: nextIterator}
	for _, r := range records {
		var w RecordWire
		w.EventID = r.EventID
		w.EventName = string(r.EventType)
		w.Dynamodb.Keys = r.Keys
		w.Dynamodb.OldImage = r.OldImage
		w.Dynamodb.NewImage = r.NewImage
		w.Dynamodb.SequenceNumber = formatSeq(r.SequenceNumber)
		w.Dynamodb.SizeBytes = r.SizeBytes
		w.Dynamodb.ApproximateCreationDateTime = r.ApproximateCreationTime
		resp.Records = append(resp.Records, w)
	}
	return resp
}
