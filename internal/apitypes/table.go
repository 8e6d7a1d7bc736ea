package apitypes

import (
	"pretender/internal/core"
	"pretender/internal/tablemgr"
)

// KeySchemaElement is one entry of a hosted-SDK-style KeySchema list.
type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"` // "HASH" or "RANGE"
}

// GlobalSecondaryIndexWire is the wire shape of one GSI definition.
type GlobalSecondaryIndexWire struct {
	IndexName  string             `json:"IndexName"`
	KeySchema  []KeySchemaElement `json:"KeySchema"`
	Projection struct {
		ProjectionType   string   `json:"ProjectionType"`
		NonKeyAttributes []string `json:"NonKeyAttributes,omitempty"`
	} `json:"Projection"`
}

func keySchemaToHashSort(ks []KeySchemaElement) (hash, sort string) {
	for _, k := range ks {
		switch k.KeyType {
		case "HASH":
			hash = k.AttributeName
		case "RANGE":
			sort = k.AttributeName
		}
	}
	return
}

func hashSortToKeySchema(hash, sort string) []KeySchemaElement {
	out := []KeySchemaElement{{AttributeName: hash, KeyType: "HASH"}}
	if sort != "" {
		out = append(out, KeySchemaElement{AttributeName: sort, KeyType: "RANGE"})
	}
	return out
}

// CreateTableRequest is the wire shape of a CreateTable call.
type CreateTableRequest struct {
	TableName              string                     `json:"TableName"`
	KeySchema              []KeySchemaElement         `json:"KeySchema"`
	GlobalSecondaryIndexes []GlobalSecondaryIndexWire `json:"GlobalSecondaryIndexes,omitempty"`
}

// TableDescription is the wire shape describing a table, shared by
// CreateTable/DescribeTable/UpdateTable responses.
type TableDescription struct {
	TableName              string                     `json:"TableName"`
	KeySchema              []KeySchemaElement         `json:"KeySchema"`
	GlobalSecondaryIndexes []GlobalSecondaryIndexWire `json:"GlobalSecondaryIndexes,omitempty"`
	TimeToLiveDescription  *struct {
		TimeToLiveStatus string `json:"TimeToLiveStatus"`
		AttributeName    string `json:"AttributeName,omitempty"`
	} `json:"TimeToLiveDescription,omitempty"`
	StreamSpecification *struct {
		StreamEnabled  bool   `json:"StreamEnabled"`
		StreamViewType string `json:"StreamViewType,omitempty"`
	} `json:"StreamSpecification,omitempty"`
	LatestStreamArn   string `json:"LatestStreamArn,omitempty"`
	LatestStreamLabel string `json:"LatestStreamLabel,omitempty"`
	CreationDateTime  string `json:"CreationDateTime"`
}

type CreateTableResponse struct {
	TableDescription TableDescription `json:"TableDescription"`
}

func (r CreateTableRequest) ToInput() tablemgr.CreateTableInput {
	hash, sort := keySchemaToHashSort(r.KeySchema)
	in := tablemgr.CreateTableInput{TableName: r.TableName, HashKeyAttribute: hash, SortKeyAttribute: sort}
	for _, gsi := range r.GlobalSecondaryIndexes {
		idxHash, idxSort := keySchemaToHashSort(gsi.KeySchema)
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, core.GlobalSecondaryIndex{
			IndexName: gsi.IndexName, HashKeyAttribute: idxHash, SortKeyAttribute: idxSort,
			ProjectionType:   core.ProjectionType(gsi.Projection.ProjectionType),
			NonKeyAttributes: gsi.Projection.NonKeyAttributes,
		})
	}
	return in
}

// FromTableMetadata builds the wire description from a table's metadata.
func FromTableMetadata(meta *core.TableMetadata) TableDescription {
	desc := TableDescription{
		TableName:        meta.Name,
		KeySchema:        hashSortToKeySchema(meta.HashKeyAttribute, meta.SortKeyAttribute),
		CreationDateTime: meta.CreateDate.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	for _, idx := range meta.GlobalSecondaryIndexes {
		w := GlobalSecondaryIndexWire{IndexName: idx.IndexName, KeySchema: hashSortToKeySchema(idx.HashKeyAttribute, idx.SortKeyAttribute)}
		w.Projection.ProjectionType = string(idx.ProjectionType)
		w.Projection.NonKeyAttributes = idx.NonKeyAttributes
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, w)
	}
	status := "DISABLED"
	if meta.TTLEnabled {
		status = "ENABLED"
	}
	desc.TimeToLiveDescription = &struct {
		TimeToLiveStatus string `json:"TimeToLiveStatus"`
		AttributeName    string `json:"AttributeName,omitempty"`
	}{TimeToLiveStatus: status, AttributeName: meta.TTLAttributeName}
	desc.StreamSpecification = &struct {
		StreamEnabled  bool   `json:"StreamEnabled"`
		StreamViewType string `json:"StreamViewType,omitempty"`
	}{StreamEnabled: meta.StreamEnabled, StreamViewType: string(meta.StreamViewType)}
	desc.LatestStreamArn = meta.StreamARN
	desc.LatestStreamLabel = meta.StreamLabel
	return desc
}

// DeleteTableRequest is the wire shape of a DeleteTable call.
type DeleteTableRequest struct {
	TableName string `json:"TableName"`
}

// ListTablesRequest is the wire shape of a ListTables call.
type ListTablesRequest struct {
	ExclusiveStartTableName string `json:"ExclusiveStartTableName,omitempty"`
	Limit                   int    `json:"Limit,omitempty"`
}

// ListTablesResponse is the wire shape of a ListTables response.
type ListTablesResponse struct {
	TableNames             []string `json:"TableNames"`
	LastEvaluatedTableName string   `json:"LastEvaluatedTableName,omitempty"`
}

// DescribeTableRequest is the wire shape of a DescribeTable call.
type DescribeTableRequest struct {
	TableName string `json:"TableName"`
}

type DescribeTableResponse struct {
	Table TableDescription `json:"Table"`
}

// UpdateTableRequest is the wire shape of an UpdateTable call. A nil
// pointer leaves the corresponding setting untouched.
type UpdateTableRequest struct {
	TableName              string `json:"TableName"`
	TimeToLiveSpecification *struct {
		Enabled       bool   `json:"Enabled"`
		AttributeName string `json:"AttributeName,omitempty"`
	} `json:"TimeToLiveSpecification,omitempty"`
	StreamSpecification *struct {
		StreamEnabled bool   `json:"StreamEnabled"`
		StreamViewType string `json:"StreamViewType,omitempty"`
	} `json:"StreamSpecification,omitempty"`
}

func (r UpdateTableRequest) ToInput() tablemgr.UpdateTableInput {
	in := tablemgr.UpdateTableInput{TableName: r.TableName}
	if r.TimeToLiveSpecification != nil {
		enabled := r.TimeToLiveSpecification.Enabled
		in.TTLEnabled = &enabled
		in.TTLAttributeName = r.TimeToLiveSpecification.AttributeName
	}
	if r.StreamSpecification != nil {
		enabled := r.StreamSpecification.StreamEnabled
		in.StreamEnabled = &enabled
		in.StreamViewType = core.StreamViewType(r.StreamSpecification.StreamViewType)
	}
	return in
}

type UpdateTableResponse struct {
	TableDescription TableDescription `json:"TableDescription"`
}
