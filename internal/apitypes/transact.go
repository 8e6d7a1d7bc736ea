package apitypes

import (
	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
)

// TransactGetItemEntry is one entry of a TransactGetItems request.
type TransactGetItemEntry struct {
	Get struct {
		TableName string        `json:"TableName"`
		Key       attrvalue.Map `json:"Key"`
	} `json:"Get"`
}

// TransactGetItemsRequest is the wire shape of a TransactGetItems call.
type TransactGetItemsRequest struct {
	TransactItems []TransactGetItemEntry `json:"TransactItems"`
}

// TransactGetItemsResponse is the wire shape of a TransactGetItems
// response. Each response entry's Item is absent if that key had no match.
type TransactGetItemsResponse struct {
	Responses []struct {
		Item attrvalue.Map `json:"Item,omitempty"`
	} `json:"Responses"`
}

func (r TransactGetItemsRequest) ToEntries() []itemmgr.TransactGetEntry {
	out := make([]itemmgr.TransactGetEntry, len(r.TransactItems))
	for i, e := range r.TransactItems {
		out[i] = itemmgr.TransactGetEntry{TableName: e.Get.TableName, Key: e.Get.Key}
	}
	return out
}

func FromTransactGetItemsOutput(out *itemmgr.TransactGetOutput) TransactGetItemsResponse {
	resp := TransactGetItemsResponse{}
	resp.Responses = make([]struct {
		Item attrvalue.Map `json:"Item,omitempty"`
	}, len(out.Items))
	for i, item := range out.Items {
		resp.Responses[i].Item = item
	}
	return resp
}

// TransactWriteItemEntry is one entry of a TransactWriteItems request;
// exactly one of Put/Update/Delete/ConditionCheck is set, matching the
// hosted SDK's discriminated-union shape for transact items.
type TransactWriteItemEntry struct {
	Put *struct {
		TableName           string            `json:"TableName"`
		Item                attrvalue.Map     `json:"Item"`
		ConditionExpression string            `json:"ConditionExpression,omitempty"`
		ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
		ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	} `json:"Put,omitempty"`
	Update *struct {
		TableName                 string            `json:"TableName"`
		Key                       attrvalue.Map     `json:"Key"`
		UpdateExpression          string            `json:"UpdateExpression"`
		ConditionExpression       string            `json:"ConditionExpression,omitempty"`
		ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
		ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	} `json:"Update,omitempty"`
	Delete *struct {
		TableName                 string            `json:"TableName"`
		Key                       attrvalue.Map     `json:"Key"`
		ConditionExpression       string            `json:"ConditionExpression,omitempty"`
		ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
		ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	} `json:"Delete,omitempty"`
	ConditionCheck *struct {
		TableName                 string            `json:"TableName"`
		Key                       attrvalue.Map     `json:"Key"`
		ConditionExpression       string            `json:"ConditionExpression"`
		ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
		ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	} `json:"ConditionCheck,omitempty"`
}

// TransactWriteItemsRequest is the wire shape of a TransactWriteItems call.
type TransactWriteItemsRequest struct {
	TransactItems []TransactWriteItemEntry `json:"TransactItems"`
}

func (r TransactWriteItemsRequest) ToEntries() ([]itemmgr.TransactWriteEntry, error) {
	out := make([]itemmgr.TransactWriteEntry, len(r.TransactItems))
	for i, e := range r.TransactItems {
		switch {
		case e.Put != nil:
			out[i] = itemmgr.TransactWriteEntry{
				Op: itemmgr.TransactPut, TableName: e.Put.TableName, Item: e.Put.Item,
				ConditionExpression: e.Put.ConditionExpression, ExpressionAttributeNames: e.Put.ExpressionAttributeNames,
				ExpressionAttributeValues: e.Put.ExpressionAttributeValues,
			}
		case e.Update != nil:
			out[i] = itemmgr.TransactWriteEntry{
				Op: itemmgr.TransactUpdate, TableName: e.Update.TableName, Key: e.Update.Key,
				UpdateExpression: e.Update.UpdateExpression, ConditionExpression: e.Update.ConditionExpression,
				ExpressionAttributeNames: e.Update.ExpressionAttributeNames, ExpressionAttributeValues: e.Update.ExpressionAttributeValues,
			}
		case e.Delete != nil:
			out[i] = itemmgr.TransactWriteEntry{
				Op: itemmgr.TransactDelete, TableName: e.Delete.TableName, Key: e.Delete.Key,
				ConditionExpression: e.Delete.ConditionExpression, ExpressionAttributeNames: e.Delete.ExpressionAttributeNames,
				ExpressionAttributeValues: e.Delete.ExpressionAttributeValues,
			}
		case e.ConditionCheck != nil:
			out[i] = itemmgr.TransactWriteEntry{
				Op: itemmgr.TransactConditionCheck, TableName: e.ConditionCheck.TableName, Key: e.ConditionCheck.Key,
				ConditionExpression: e.ConditionCheck.ConditionExpression, ExpressionAttributeNames: e.ConditionCheck.ExpressionAttributeNames,
				ExpressionAttributeValues: e.ConditionCheck.ExpressionAttributeValues,
			}
		default:
			return nil, apierr.New(apierr.KindValidation, "transact item %d sets none of Put/Update/Delete/ConditionCheck", i)
		}
	}
	return out, nil
}
