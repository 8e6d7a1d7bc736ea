// Package httpapi is the JSON-over-HTTP front door from SPEC_FULL.md §6:
// one route, POST /, dispatching on an X-Pretender-Target header to one
// handler per hosted-SDK action — mirroring the hosted service's own
// single-endpoint-multiple-actions wire protocol. Grounded on
// btwiuse-func's api/httpapi/server.go (single http.ServeMux, a
// lazily-built router, JSON decode/respond helpers, *zap.Logger field),
// adapted from per-path routing to header-based action dispatch.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"pretender/internal/apierr"
	"pretender/internal/itemmgr"
	"pretender/internal/streammgr"
	"pretender/internal/tablemgr"
)

// TargetHeader names the action a request invokes, in the style of the
// hosted SDK's own "X-Amz-Target" header.
const TargetHeader = "X-Pretender-Target"

// Server serves the item engine's JSON API.
type Server struct {
	Items   *itemmgr.Manager
	Tables  *tablemgr.Manager
	Streams *streammgr.Manager
	Logger  *zap.Logger

	once   sync.Once
	router *http.ServeMux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.setupRoutes)
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router = http.NewServeMux()
	s.router.HandleFunc("/", s.handleAction())
}

type errorBody struct {
	Kind    string `json:"__type"`
	Message string `json:"message"`
	Reasons []apierr.CancellationReason `json:"CancellationReasons,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("encoding response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := apierr.KindOf(err)
	switch kind {
	case apierr.KindTableNotFound:
		status = http.StatusNotFound
	case apierr.KindInvalidExpression, apierr.KindInvalidItem, apierr.KindItemTooLarge,
		apierr.KindConditionalCheckFailed, apierr.KindTransactionCancelled, apierr.KindValidation:
		status = http.StatusBadRequest
	}
	body := errorBody{Kind: string(kind), Message: err.Error()}
	var apiErr *apierr.Error
	if e, ok := err.(*apierr.Error); ok {
		apiErr = e
		body.Reasons = apiErr.Reasons
	}
	s.Logger.Debug("request failed", zap.String("kind", string(kind)), zap.Error(err))
	s.respond(w, status, body)
}

func (s *Server) decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// handleAction dispatches on TargetHeader to one handler per action.
func (s *Server) handleAction() http.HandlerFunc {
	handlers := s.actionTable()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respond(w, http.StatusMethodNotAllowed, errorBody{Kind: "MethodNotAllowed", Message: "only POST is supported"})
			return
		}
		target := r.Header.Get(TargetHeader)
		handler, ok := handlers[target]
		if !ok {
			s.respond(w, http.StatusBadRequest, errorBody{Kind: "UnknownOperationException", Message: "unknown target: " + target})
			return
		}
		handler(w, r)
	}
}
