// Package ingest accepts device telemetry and admin edits, validates them and
// persists them through the reading store.
package ingest

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/jonboulle/clockwork"
)

// publishTimeout bounds event publication after the reading is stored.
const publishTimeout = 5 * time.Second

// Publisher announces stored readings to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event domain.ReadingEvent) error
}

// Options hold the shared secrets and defaults of the write path.
type Options struct {
	DeviceAPIKey    string
	AdminToken      string
	DefaultDeviceID string
}

// Result is the outcome of a create. Created is false when an idempotency
// key matched an existing reading and nothing was written.
type Result struct {
	Reading domain.Reading
	Created bool
}

// Service is the write path for readings.
type Service struct {
	store     domain.ReadingStore
	publisher Publisher
	clock     clockwork.Clock
	opts      Options
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a Service. publisher may be nil.
func New(store domain.ReadingStore, publisher Publisher, clock clockwork.Clock, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// AuthorizeDevice checks a device API key. Transports call it before reading
// the request body.
func (s *Service) AuthorizeDevice(token string) error {
	if err := authorize(s.opts.DeviceAPIKey, token); err != nil {
		s.reject(err)
		return err
	}
	return nil
}

// AuthorizeAdmin checks an administrator token.
func (s *Service) AuthorizeAdmin(token string) error {
	return authorize(s.opts.AdminToken, token)
}

// Ingest authenticates a device with its API key, validates the payload and
// stores exactly one reading. idemKey, when not blank, overrides any key in
// the body.
func (s *Service) Ingest(ctx context.Context, token, idemKey string, body []byte) (Result, error) {
	if err := s.AuthorizeDevice(token); err != nil {
		return Result{}, err
	}
	res, err := s.create(ctx, idemKey, body)
	if err != nil {
		s.reject(err)
		return Result{}, err
	}
	return res, nil
}

// Create stores a reading on behalf of an administrator. Validation is the
// same as for device ingestion.
func (s *Service) Create(ctx context.Context, adminToken, idemKey string, body []byte) (Result, error) {
	if err := s.AuthorizeAdmin(adminToken); err != nil {
		return Result{}, err
	}
	return s.create(ctx, idemKey, body)
}

// Update applies a partial edit to the reading with the given id.
func (s *Service) Update(ctx context.Context, adminToken, id string, body []byte) (int64, error) {
	if err := s.AuthorizeAdmin(adminToken); err != nil {
		return 0, err
	}
	patch, err := domain.NormalizePatch(body)
	if err != nil {
		return 0, err
	}
	n, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return 0, fmt.Errorf("update reading %s: %w", id, err)
	}
	s.logger.Info("reading updated", "id", id, "modified", n)
	return n, nil
}

// Delete removes the reading with the given id.
func (s *Service) Delete(ctx context.Context, adminToken, id string) (int64, error) {
	if err := s.AuthorizeAdmin(adminToken); err != nil {
		return 0, err
	}
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete reading %s: %w", id, err)
	}
	s.logger.Info("reading deleted", "id", id)
	return n, nil
}

func (s *Service) create(ctx context.Context, idemKey string, body []byte) (Result, error) {
	now := s.clock.Now()
	r, err := domain.NormalizeIngest(body, now, s.opts.DefaultDeviceID)
	if err != nil {
		return Result{}, err
	}
	if k := strings.TrimSpace(idemKey); k != "" {
		r.IdempotencyKey = k
	}

	stored, created, err := s.store.Insert(ctx, r)
	if err != nil {
		return Result{}, fmt.Errorf("store reading: %w", err)
	}
	if !created {
		s.logger.Debug("idempotent replay", "id", stored.ID, "device_id", stored.DeviceID)
		return Result{Reading: stored}, nil
	}

	s.metrics.ReadingsIngested.Inc()
	s.logger.Debug("reading stored", "id", stored.ID, "device_id", stored.DeviceID, "ts", stored.Timestamp)
	s.publish(ctx, stored, now)
	return Result{Reading: stored, Created: true}, nil
}

// publish emits the ingestion event. Failures are logged and counted; the
// reading is already durable.
func (s *Service) publish(ctx context.Context, r domain.Reading, at time.Time) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, domain.NewReadingEvent(r, at)); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish reading event failed", "id", r.ID, "error", err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues("success").Inc()
}

func (s *Service) reject(err error) {
	kind := domain.Kind(err)
	s.metrics.IngestRejected.WithLabelValues(kind).Inc()
	s.logger.Debug("ingest rejected", "kind", kind, "error", err)
}

// authorize compares token to secret in constant time. An unset secret
// rejects every request.
func authorize(secret, token string) error {
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(token)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
