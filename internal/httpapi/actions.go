package httpapi

import (
	"net/http"

	"pretender/internal/apitypes"
	"pretender/internal/streammgr"
)

// actionTable builds the TargetHeader -> handler map, one entry per
// operation in SPEC_FULL.md §6.
func (s *Server) actionTable() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"PutItem":           s.handlePutItem,
		"GetItem":           s.handleGetItem,
		"UpdateItem":        s.handleUpdateItem,
		"DeleteItem":        s.handleDeleteItem,
		"Query":             s.handleQuery,
		"Scan":              s.handleScan,
		"BatchGetItem":      s.handleBatchGetItem,
		"BatchWriteItem":    s.handleBatchWriteItem,
		"TransactGetItems":  s.handleTransactGetItems,
		"TransactWriteItems": s.handleTransactWriteItems,
		"CreateTable":       s.handleCreateTable,
		"DeleteTable":       s.handleDeleteTable,
		"ListTables":        s.handleListTables,
		"DescribeTable":     s.handleDescribeTable,
		"UpdateTable":       s.handleUpdateTable,
		"DescribeStream":    s.handleDescribeStream,
		"ListStreams":       s.handleListStreams,
		"GetShardIterator":  s.handleGetShardIterator,
		"GetRecords":        s.handleGetRecords,
	}
}

func (s *Server) handlePutItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.PutItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.PutItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromPutItemOutput(out))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.GetItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.GetItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromGetItemOutput(out))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.UpdateItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.UpdateItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromUpdateItemOutput(out))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DeleteItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.DeleteItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromDeleteItemOutput(out))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req apitypes.QueryRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.Query(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromQueryOutput(out))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req apitypes.ScanRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.Scan(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromScanOutput(out))
}

func (s *Server) handleBatchGetItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.BatchGetItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.BatchGetItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromBatchGetItemOutput(out))
}

func (s *Server) handleBatchWriteItem(w http.ResponseWriter, r *http.Request) {
	var req apitypes.BatchWriteItemRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.BatchWriteItem(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromBatchWriteItemOutput(out))
}

func (s *Server) handleTransactGetItems(w http.ResponseWriter, r *http.Request) {
	var req apitypes.TransactGetItemsRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	out, err := s.Items.TransactGetItems(r.Context(), req.ToEntries())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromTransactGetItemsOutput(out))
}

func (s *Server) handleTransactWriteItems(w http.ResponseWriter, r *http.Request) {
	var req apitypes.TransactWriteItemsRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	entries, err := req.ToEntries()
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.Items.TransactWriteItems(r.Context(), entries); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, struct{}{})
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateTableRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	meta, err := s.Tables.CreateTable(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.CreateTableResponse{TableDescription: apitypes.FromTableMetadata(meta)})
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DeleteTableRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.Tables.DeleteTable(r.Context(), req.TableName); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, struct{}{})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	var req apitypes.ListTablesRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	names, err := s.Tables.ListTables(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.ListTablesResponse{TableNames: names})
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DescribeTableRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	meta, err := s.Tables.DescribeTable(r.Context(), req.TableName)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.DescribeTableResponse{Table: apitypes.FromTableMetadata(meta)})
}

func (s *Server) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var req apitypes.UpdateTableRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	meta, err := s.Tables.UpdateTable(r.Context(), req.ToInput())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.UpdateTableResponse{TableDescription: apitypes.FromTableMetadata(meta)})
}

func (s *Server) handleDescribeStream(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DescribeStreamRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	table, err := streammgr.TableFromStreamARN(req.StreamArn)
	if err != nil {
		s.respondError(w, err)
		return
	}
	meta, err := s.Streams.DescribeStream(r.Context(), table)
	if err != nil {
		s.respondError(w, err)
		return
	}
	shard, err := s.Streams.DescribeShard(r.Context(), table)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromStreamDescription(meta, shard))
}

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	var req apitypes.ListStreamsRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	tables, err := s.Streams.ListStreams(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if req.TableName != "" {
		filtered := tables[:0]
		for _, t := range tables {
			if t.Name == req.TableName {
				filtered = append(filtered, t)
			}
		}
		tables = filtered
	}
	s.respond(w, http.StatusOK, apitypes.FromStreamList(tables))
}

func (s *Server) handleGetShardIterator(w http.ResponseWriter, r *http.Request) {
	var req apitypes.GetShardIteratorRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	table, err := streammgr.TableFromStreamARN(req.StreamArn)
	if err != nil {
		s.respondError(w, err)
		return
	}
	seq, err := req.SequenceNumberInt()
	if err != nil {
		s.respondError(w, err)
		return
	}
	iter, err := s.Streams.GetShardIterator(r.Context(), table, streammgr.IteratorType(req.ShardIteratorType), seq)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.GetShardIteratorResponse{ShardIterator: iter})
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	var req apitypes.GetRecordsRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	records, next, err := s.Streams.GetRecords(r.Context(), req.ShardIterator, req.Limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apitypes.FromChangeRecords(records, next))
}
