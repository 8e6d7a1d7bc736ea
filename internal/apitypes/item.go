// Package apitypes defines the hosted-service SDK-shaped JSON request and
// response structs from SPEC_FULL.md §6, and the conversions between them
// and the item engine's native Go types (internal/itemmgr,
// internal/tablemgr, internal/streammgr). Field names and JSON tags mirror
// the hosted SDK's own wire protocol verbatim (PascalCase, one field per
// SDK parameter), grounded on the wire-tag model in
// other_examples/...dynamodb-adapter__models-model.go.go's `Meta` struct.
package apitypes

import (
	"pretender/internal/attrvalue"
	"pretender/internal/itemmgr"
)

// PutItemRequest is the wire shape of a PutItem call.
type PutItemRequest struct {
	TableName                 string             `json:"TableName"`
	Item                      attrvalue.Map      `json:"Item"`
	ConditionExpression       string             `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string  `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues attrvalue.Map      `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string             `json:"ReturnValues,omitempty"`
}

// PutItemResponse is the wire shape of a PutItem response.
type PutItemResponse struct {
	Attributes attrvalue.Map `json:"Attributes,omitempty"`
}

// ToInput converts the wire request to itemmgr's native input.
func (r PutItemRequest) ToInput() itemmgr.PutItemInput {
	return itemmgr.PutItemInput{
		TableName: r.TableName, Item: r.Item, ConditionExpression: r.ConditionExpression,
		ExpressionAttributeNames: r.ExpressionAttributeNames, ExpressionAttributeValues: r.ExpressionAttributeValues,
		ReturnValues: r.ReturnValues,
	}
}

// FromPutItemOutput converts itemmgr's native output to the wire response.
func FromPutItemOutput(out *itemmgr.PutItemOutput) PutItemResponse {
	return PutItemResponse{Attributes: out.Attributes}
}

// GetItemRequest is the wire shape of a GetItem call.
type GetItemRequest struct {
	TableName string        `json:"TableName"`
	Key       attrvalue.Map `json:"Key"`
}

// GetItemResponse is the wire shape of a GetItem response. Item is absent
// (nil) when the key had no matching row, matching the hosted SDK.
type GetItemResponse struct {
	Item attrvalue.Map `json:"Item,omitempty"`
}

func (r GetItemRequest) ToInput() itemmgr.GetItemInput {
	return itemmgr.GetItemInput{TableName: r.TableName, Key: r.Key}
}

func FromGetItemOutput(out *itemmgr.GetItemOutput) GetItemResponse {
	if !out.Found {
		return GetItemResponse{}
	}
	return GetItemResponse{Item: out.Item}
}

// UpdateItemRequest is the wire shape of an UpdateItem call.
type UpdateItemRequest struct {
	TableName                 string            `json:"TableName"`
	Key                       attrvalue.Map     `json:"Key"`
	UpdateExpression          string            `json:"UpdateExpression"`
	ConditionExpression       string            `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string            `json:"ReturnValues,omitempty"`
}

type UpdateItemResponse struct {
	Attributes attrvalue.Map `json:"Attributes,omitempty"`
}

func (r UpdateItemRequest) ToInput() itemmgr.UpdateItemInput {
	return itemmgr.UpdateItemInput{
		TableName: r.TableName, Key: r.Key, UpdateExpression: r.UpdateExpression,
		ConditionExpression: r.ConditionExpression, ExpressionAttributeNames: r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues, ReturnValues: r.ReturnValues,
	}
}

func FromUpdateItemOutput(out *itemmgr.UpdateItemOutput) UpdateItemResponse {
	return UpdateItemResponse{Attributes: out.Attributes}
}

// DeleteItemRequest is the wire shape of a DeleteItem call.
type DeleteItemRequest struct {
	TableName                 string            `json:"TableName"`
	Key                       attrvalue.Map     `json:"Key"`
	ConditionExpression       string            `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues attrvalue.Map     `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string            `json:"ReturnValues,omitempty"`
}

type DeleteItemResponse struct {
	Attributes attrvalue.Map `json:"Attributes,omitempty"`
}

func (r DeleteItemRequest) ToInput() itemmgr.DeleteItemInput {
	return itemmgr.DeleteItemInput{
		TableName: r.TableName, Key: r.Key, ConditionExpression: r.ConditionExpression,
		ExpressionAttributeNames: r.ExpressionAttributeNames, ExpressionAttributeValues: r.ExpressionAttributeValues,
		ReturnValues: r.ReturnValues,
	}
}

func FromDeleteItemOutput(out *itemmgr.DeleteItemOutput) DeleteItemResponse {
	return DeleteItemResponse{Attributes: out.Attributes}
}
