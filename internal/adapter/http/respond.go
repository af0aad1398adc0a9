package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/weather-station-api/internal/domain"
)

type errorBody struct {
	OK    bool   `json:"ok"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type listBody[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listBody[T] {
	if items == nil {
		items = []T{}
	}
	return listBody[T]{Items: items, Count: len(items)}
}

var kindStatus = map[string]int{
	"unauthorized":        http.StatusUnauthorized,
	"invalid_payload":     http.StatusUnprocessableEntity,
	"invalid_timestamp":   http.StatusUnprocessableEntity,
	"invalid_id":          http.StatusBadRequest,
	"not_found":           http.StatusNotFound,
	"storage_unavailable": http.StatusServiceUnavailable,
	"upstream_timeout":    http.StatusGatewayTimeout,
	"upstream_error":      http.StatusBadGateway,
}

// writeError maps err onto its kind and status. Internal errors are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	status, ok := kindStatus[kind]
	msg := err.Error()
	if !ok {
		status = http.StatusInternalServerError
		msg = "internal error"
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else if status >= http.StatusInternalServerError {
		s.logger.Warn("request degraded", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status, kind, msg = http.StatusRequestEntityTooLarge, "invalid_payload", "request body too large"
	}
	writeJSON(w, status, errorBody{OK: false, Kind: kind, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
