package apitypes

import (
	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
)

// QueryRequest is the wire shape of a Query call.
type QueryRequest struct {
	TableName                 string            `json:"TableName"`
	IndexName                 string            `json:"IndexName,omitempty"`
	KeyConditionExpression    string            `json:"KeyConditionExpression"`
	FilterExpression          string            `json:"FilterExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	Limit                     int               `json:"Limit,omitempty"`
	ExclusiveStartKey         attrvalue.Map     `json:"ExclusiveStartKey,omitempty"`
	ScanIndexForward          *bool             `json:"ScanIndexForward,omitempty"`
}

// QueryResponse is the wire shape of a Query response.
type QueryResponse struct {
	Items            []attrvalue.Map `json:"Items"`
	Count            int             `json:"Count"`
	ScannedCount     int             `json:"ScannedCount"`
	LastEvaluatedKey attrvalue.Map   `json:"LastEvaluatedKey,omitempty"`
}

func (r QueryRequest) ToInput() itemmgr.QueryInput {
	forward := true
	if r.ScanIndexForward != nil {
		forward = *r.ScanIndexForward
	}
	return itemmgr.QueryInput{
		TableName: r.TableName, IndexName: r.IndexName, KeyConditionExpression: r.KeyConditionExpression,
		FilterExpression: r.FilterExpression, ExpressionAttributeNames: r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues, Limit: r.Limit,
		ExclusiveStartKey: r.ExclusiveStartKey, ScanForward: forward,
	}
}

func FromQueryOutput(out *itemmgr.QueryOutput) QueryResponse {
	return QueryResponse{
		Items: out.Items, Count: out.Count, ScannedCount: out.ScannedCount, LastEvaluatedKey: out.LastEvaluatedKey,
	}
}

// ScanRequest is the wire shape of a Scan call.
type ScanRequest struct {
	TableName                 string            `json:"TableName"`
	IndexName                 string            `json:"IndexName,omitempty"`
	FilterExpression          string            `json:"FilterExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	Limit                     int               `json:"Limit,omitempty"`
	ExclusiveStartKey         attrvalue.Map     `json:"ExclusiveStartKey,omitempty"`
}

// ScanResponse mirrors QueryResponse's shape.
type ScanResponse = QueryResponse

func (r ScanRequest) ToInput() itemmgr.ScanInput {
	return itemmgr.ScanInput{
		TableName: r.TableName, IndexName: r.IndexName, FilterExpression: r.FilterExpression,
		ExpressionAttributeNames: r.ExpressionAttributeNames, ExpressionAttributeValues: r.ExpressionAttributeValues,
		Limit: r.Limit, ExclusiveStartKey: r.ExclusiveStartKey,
	}
}

func FromScanOutput(out *itemmgr.QueryOutput) ScanResponse { return FromQueryOutput(out) }
