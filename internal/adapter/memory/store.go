// Package memory provides an in-process ReadingStore for local development
// and tests. Data does not survive a restart.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/couchcryptid/weather-station-api/internal/domain"
)

var objectIDRe = regexp.MustCompile(`^[0-9a-f]{24}$`)

// Store implements domain.ReadingStore over a slice guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	readings []domain.Reading
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Insert(_ context.Context, r domain.Reading) (domain.Reading, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.IdempotencyKey != "" {
		for _, existing := range s.readings {
			if existing.IdempotencyKey == r.IdempotencyKey {
				return existing, false, nil
			}
		}
	}

	id, err := newObjectID()
	if err != nil {
		return domain.Reading{}, false, fmt.Errorf("%w: generate id: %v", domain.ErrStorageUnavailable, err)
	}
	r.ID = id
	r.Timestamp = r.Timestamp.UTC()
	s.readings = append(s.readings, r)
	return r, true, nil
}

func (s *Store) Update(_ context.Context, id string, patch domain.ReadingPatch) (int64, error) {
	if !objectIDRe.MatchString(id) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.readings {
		if s.readings[i].ID == id {
			before := s.readings[i]
			patch.Apply(&s.readings[i])
			if sameReading(before, s.readings[i]) {
				return 0, nil
			}
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: reading %s", domain.ErrNotFound, id)
}

func (s *Store) Delete(_ context.Context, id string) (int64, error) {
	if !objectIDRe.MatchString(id) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.readings {
		if s.readings[i].ID == id {
			s.readings = append(s.readings[:i], s.readings[i+1:]...)
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: reading %s", domain.ErrNotFound, id)
}

func (s *Store) List(_ context.Context, filter domain.ReadingFilter) ([]domain.Reading, error) {
	s.mu.RLock()
	matched := make([]domain.Reading, 0)
	for _, r := range s.readings {
		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if filter.Order == domain.SortAsc {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	limit := domain.ClampLimit(filter.Limit)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Aggregate(_ context.Context, tr domain.TimeRange, deviceID string) (domain.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var in []domain.Reading
	for _, r := range s.readings {
		if deviceID != "" && r.DeviceID != deviceID {
			continue
		}
		if tr.Contains(r.Timestamp) {
			in = append(in, r)
		}
	}
	return domain.Summarize(in), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CheckReadiness always succeeds; the store lives in process.
func (s *Store) CheckReadiness(context.Context) error { return nil }

func newObjectID() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func sameReading(a, b domain.Reading) bool {
	if a.DeviceID != b.DeviceID || !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	for _, f := range domain.MeasurementFields {
		x, y := a.Get(f), b.Get(f)
		if (x == nil) != (y == nil) || (x != nil && *x != *y) {
			return false
		}
	}
	return true
}
