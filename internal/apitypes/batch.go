package apitypes

import (
	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
)

// BatchGetItemRequest is the wire shape of a BatchGetItem call. Each
// table's keys are carried under a "Keys" field, matching the hosted
// SDK's per-table request-items shape (projection expressions are not
// modeled; Pretender always returns full items).
type BatchGetItemRequest struct {
	RequestItems map[string]struct {
		Keys []attrvalue.Map `json:"Keys"`
	} `json:"RequestItems"`
}

// BatchGetItemResponse is the wire shape of a BatchGetItem response.
type BatchGetItemResponse struct {
	Responses map[string][]attrvalue.Map `json:"Responses"`
}

func (r BatchGetItemRequest) ToInput() itemmgr.BatchGetInput {
	in := itemmgr.BatchGetInput{RequestItems: map[string][]attrvalue.Map{}}
	for table, req := range r.RequestItems {
		in.RequestItems[table] = req.Keys
	}
	return in
}

func FromBatchGetItemOutput(out *itemmgr.BatchGetOutput) BatchGetItemResponse {
	return BatchGetItemResponse{Responses: out.Responses}
}

// writeRequestWire is one entry of a BatchWriteItem request: exactly one
// of PutRequest or DeleteRequest is set, matching the hosted SDK's
// discriminated-union shape for write requests.
type writeRequestWire struct {
	PutRequest *struct {
		Item attrvalue.Map `json:"Item"`
	} `json:"PutRequest,omitempty"`
	DeleteRequest *struct {
		Key attrvalue.Map `json:"Key"`
	} `json:"DeleteRequest,omitempty"`
}

// BatchWriteItemRequest is the wire shape of a BatchWriteItem call.
type BatchWriteItemRequest struct {
	RequestItems map[string][]writeRequestWire `json:"RequestItems"`
}

// BatchWriteItemResponse is the wire shape of a BatchWriteItem response.
type BatchWriteItemResponse struct {
	UnprocessedItems map[string][]writeRequestWire `json:"UnprocessedItems,omitempty"`
}

func (r BatchWriteItemRequest) ToInput() itemmgr.BatchWriteInput {
	in := itemmgr.BatchWriteInput{RequestItems: map[string][]itemmgr.WriteRequest{}}
	for table, reqs := range r.RequestItems {
		for _, req := range reqs {
			var wr itemmgr.WriteRequest
			if req.PutRequest != nil {
				wr.Put = req.PutRequest.Item
			}
			if req.DeleteRequest != nil {
				wr.Delete = req.DeleteRequest.Key
			}
			in.RequestItems[table] = append(in.RequestItems[table], wr)
		}
	}
	return in
}

func FromBatchWriteItemOutput(out *itemmgr.BatchWriteOutput) BatchWriteItemResponse {
	resp := BatchWriteItemResponse{}
	if len(out.UnprocessedItems) == 0 {
		return resp
	}
	resp.UnprocessedItems = map[string][]writeRequestWire{}
	for table, reqs := range out.UnprocessedItems {
		for _, req := range reqs {
			var w writeRequestWire
			if req.Put != nil {
				w.PutRequest = &struct {
					Item attrvalue.Map `json:"Item"`
				}{Item: req.Put}
			}
			if req.Delete != nil {
				w.DeleteRequest = &struct {
					Key attrvalue.Map `json:"Key"`
				}{Key: req.Delete}
			}
			resp.UnprocessedItems[table] = append(resp.UnprocessedItems[table], w)
		}
	}
	return resp
}
