package domain

import "errors"

// Error kinds surfaced to callers. Adapters wrap these with context using
// fmt.Errorf("...: %w", ErrX) and the transport maps them with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrInvalidID          = errors.New("invalid id")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrUpstreamError      = errors.New("upstream error")
)

// Kind returns the machine-readable kind of err, or "internal" when err does
// not wrap any of the domain sentinels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrUpstreamError):
		return "upstream_error"
	default:
		return "internal"
	}
}
