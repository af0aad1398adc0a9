package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// requiredFields must be present and numeric on every ingested reading.
var requiredFields = map[Field]bool{
	FieldTemperature: true,
	FieldHumidity:    true,
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e12 ms is September 2001; 1e12 s is far beyond any plausible date.
const epochMillisThreshold = 1e12

// NormalizeIngest validates a device payload and builds the canonical
// reading. now is the ingestion instant used when the device sends no
// timestamp. An empty defaultDevice makes deviceId mandatory.
func NormalizeIngest(body []byte, now time.Time, defaultDevice string) (Reading, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return Reading{}, err
	}

	r := Reading{DeviceID: defaultDevice}
	if v, ok := raw["deviceId"]; ok && !isNull(v) {
		id, err := decodeDeviceID(v)
		if err != nil {
			return Reading{}, err
		}
		r.DeviceID = id
	}
	if r.DeviceID == "" {
		return Reading{}, fmt.Errorf("%w: deviceId is required", ErrInvalidPayload)
	}

	for _, f := range MeasurementFields {
		v, err := decodeNumber(raw, f)
		if err != nil {
			return Reading{}, err
		}
		if v == nil && requiredFields[f] {
			return Reading{}, fmt.Errorf("%w: %s is required and must be a number", ErrInvalidPayload, f)
		}
		r.Set(f, v)
	}

	ts, supplied, err := decodeTimestamp(raw)
	if err != nil {
		return Reading{}, err
	}
	if supplied {
		r.Timestamp = ts
	} else {
		r.Timestamp = now.UTC()
	}

	if v, ok := raw["idempotencyKey"]; ok && !isNull(v) {
		var key string
		if err := json.Unmarshal(v, &key); err != nil {
			return Reading{}, fmt.Errorf("%w: idempotencyKey must be a string", ErrInvalidPayload)
		}
		r.IdempotencyKey = strings.TrimSpace(key)
	}
	if r.IdempotencyKey == "" && supplied {
		r.IdempotencyKey = DeriveIdempotencyKey(r.DeviceID, r.Timestamp)
	}

	return r, nil
}

// NormalizePatch validates an administrative partial update. Unknown keys
// are ignored; the patch must change at least one field.
func NormalizePatch(body []byte) (ReadingPatch, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return ReadingPatch{}, err
	}

	var p ReadingPatch
	if v, ok := raw["deviceId"]; ok {
		id, err := decodeDeviceID(v)
		if err != nil {
			return ReadingPatch{}, err
		}
		p.DeviceID = &id
	}
	for _, f := range MeasurementFields {
		if _, ok := raw[string(f)]; !ok {
			continue
		}
		v, err := decodeNumber(raw, f)
		if err != nil {
			return ReadingPatch{}, err
		}
		if p.Values == nil {
			p.Values = make(map[Field]*float64)
		}
		p.Values[f] = v
	}
	ts, supplied, err := decodeTimestamp(raw)
	if err != nil {
		return ReadingPatch{}, err
	}
	if supplied {
		p.Timestamp = &ts
	}

	if p.Empty() {
		return ReadingPatch{}, fmt.Errorf("%w: no updatable fields", ErrInvalidPayload)
	}
	return p, nil
}

// DeriveIdempotencyKey builds a deterministic key from the device and the
// device-supplied timestamp, so a retried delivery maps to the same record.
func DeriveIdempotencyKey(deviceID string, ts time.Time) string {
	input := fmt.Sprintf("%s|%s", deviceID, ts.UTC().Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// ParseInstant parses an absolute instant: RFC 3339 with an offset, or an
// epoch in seconds or milliseconds.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(n)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 instant", ErrInvalidTimestamp, s)
	}
	return t.UTC(), nil
}

func fromEpoch(n float64) (time.Time, error) {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("%w: epoch out of range", ErrInvalidTimestamp)
	}
	if n >= epochMillisThreshold {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}
	return raw, nil
}

func decodeDeviceID(v json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(v, &id); err != nil || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: deviceId must be a non-empty string", ErrInvalidPayload)
	}
	return strings.TrimSpace(id), nil
}

// decodeNumber returns nil for an absent or null field and fails for any
// JSON type other than number.
func decodeNumber(raw map[string]json.RawMessage, f Field) (*float64, error) {
	v, ok := raw[string(f)]
	if !ok || isNull(v) {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidPayload, f)
	}
	return &n, nil
}

// decodeTimestamp reads "ts", falling back to "timestamp".
func decodeTimestamp(raw map[string]json.RawMessage) (time.Time, bool, error) {
	v, ok := raw["ts"]
	if !ok || isNull(v) {
		v, ok = raw["timestamp"]
	}
	if !ok || isNull(v) {
		return time.Time{}, false, nil
	}

	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		t, err := fromEpoch(n)
		return t, true, err
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: ts must be a string or number", ErrInvalidTimestamp)
	}
	t, err := ParseInstant(s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
