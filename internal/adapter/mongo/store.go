// Package mongo implements the reading store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store implements domain.ReadingStore on a MongoDB collection. The
// underlying *mongo.Client owns the connection pool; one Store is built at
// startup and shared by every request.
type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Options configures Connect.
type Options struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Connect opens the client pool, verifies the server is reachable and
// ensures the collection indexes exist.
func Connect(ctx context.Context, opts Options, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.Timeout).
		SetAppName("weather-station-api"))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	s := NewStore(client, client.Database(opts.Database).Collection(opts.Collection), opts.Timeout, metrics, logger)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("mongo store connected", "database", opts.Database, "collection", opts.Collection)
	return s, nil
}

// NewStore wraps an existing client and collection.
func NewStore(client *mongo.Client, coll *mongo.Collection, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{client: client, coll: coll, timeout: timeout, metrics: metrics, logger: logger}
}

// EnsureIndexes creates the time and idempotency indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, done := s.begin(ctx, "ensure_indexes")
	defer done()

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ts", Value: -1}}},
		{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "ts", Value: -1}}},
		{
			Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return translate("ensure indexes", err)
	}
	return nil
}

// Ping checks the primary is reachable. It satisfies the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	ctx, done := s.begin(ctx, "ping")
	defer done()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return translate("ping", err)
	}
	return nil
}

// CheckReadiness reports whether the store can serve requests.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.Ping(ctx)
}

// Close disconnects the client pool.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Insert(ctx context.Context, r domain.Reading) (domain.Reading, bool, error) {
	ctx, done := s.begin(ctx, "insert")
	defer done()

	doc := toDocument(r)
	if r.IdempotencyKey == "" {
		res, err := s.coll.InsertOne(ctx, doc)
		if err != nil {
			return domain.Reading{}, false, translate("insert", err)
		}
		doc.ID = res.InsertedID.(primitive.ObjectID)
		return doc.toReading(), true, nil
	}

	// Upsert on the key: the filter supplies idempotencyKey to a new
	// document, so it is left out of $setOnInsert.
	doc.IdempotencyKey = ""
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"idempotencyKey": r.IdempotencyKey},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return domain.Reading{}, false, translate("upsert", err)
	}
	if err == nil && res.UpsertedID != nil {
		doc.ID = res.UpsertedID.(primitive.ObjectID)
		doc.IdempotencyKey = r.IdempotencyKey
		return doc.toReading(), true, nil
	}

	var existing document
	if err := s.coll.FindOne(ctx, bson.M{"idempotencyKey": r.IdempotencyKey}).Decode(&existing); err != nil {
		return domain.Reading{}, false, translate("find by idempotency key", err)
	}
	s.logger.Debug("idempotent replay", "idempotency_key", r.IdempotencyKey, "reading_id", existing.ID.Hex())
	return existing.toReading(), false, nil
}

func (s *Store) Update(ctx context.Context, id string, patch domain.ReadingPatch) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	ctx, done := s.begin(ctx, "update")
	defer done()

	set := bson.M{}
	if patch.DeviceID != nil {
		set["deviceId"] = *patch.DeviceID
	}
	if patch.Timestamp != nil {
		set["ts"] = patch.Timestamp.UTC()
	}
	for f, v := range patch.Values {
		set[string(f)] = v
	}

	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return 0, translate("update", err)
	}
	if res.MatchedCount == 0 {
		return 0, fmt.Errorf("%w: reading %s", domain.ErrNotFound, id)
	}
	return res.ModifiedCount, nil
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	ctx, done := s.begin(ctx, "delete")
	defer done()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, translate("delete", err)
	}
	if res.DeletedCount == 0 {
		return 0, fmt.Errorf("%w: reading %s", domain.ErrNotFound, id)
	}
	return res.DeletedCount, nil
}

func (s *Store) List(ctx context.Context, filter domain.ReadingFilter) ([]domain.Reading, error) {
	ctx, done := s.begin(ctx, "list")
	defer done()

	q := bson.M{}
	if filter.DeviceID != "" {
		q["deviceId"] = filter.DeviceID
	}
	ts := bson.M{}
	if filter.From != nil {
		ts["$gte"] = filter.From.UTC()
	}
	if filter.To != nil {
		ts["$lte"] = filter.To.UTC()
	}
	if len(ts) > 0 {
		q["ts"] = ts
	}

	dir := -1
	if filter.Order == domain.SortAsc {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(domain.ClampLimit(filter.Limit)))

	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, translate("find", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate("decode", err)
	}

	out := make([]domain.Reading, len(docs))
	for i := range docs {
		out[i] = docs[i].toReading()
	}
	return out, nil
}

func (s *Store) Aggregate(ctx context.Context, tr domain.TimeRange, deviceID string) (domain.Aggregate, error) {
	ctx, done := s.begin(ctx, "aggregate")
	defer done()

	cur, err := s.coll.Aggregate(ctx, aggregatePipeline(tr, deviceID))
	if err != nil {
		return domain.Aggregate{}, translate("aggregate", err)
	}
	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return domain.Aggregate{}, translate("decode aggregate", err)
	}
	if len(rows) == 0 {
		return domain.Summarize(nil), nil
	}
	return aggregateFromRow(rows[0]), nil
}

// aggregatePipeline pushes the statistics down to the server. $min, $max,
// $avg and $sum skip null and missing values; the per-field count uses
// $isNumber for the same reason.
func aggregatePipeline(tr domain.TimeRange, deviceID string) mongo.Pipeline {
	endOp := "$lt"
	if tr.EndInclusive {
		endOp = "$lte"
	}
	match := bson.D{{Key: "ts", Value: bson.D{{Key: "$gte", Value: tr.Start.UTC()}, {Key: endOp, Value: tr.End.UTC()}}}}
	if deviceID != "" {
		match = append(match, bson.E{Key: "deviceId", Value: deviceID})
	}

	group := bson.D{{Key: "_id", Value: nil}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}
	for _, f := range domain.MeasurementFields {
		ref := "$" + string(f)
		group = append(group,
			bson.E{Key: string(f) + "_n", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{bson.D{{Key: "$isNumber", Value: ref}}, 1, 0}}}}}},
			bson.E{Key: string(f) + "_min", Value: bson.D{{Key: "$min", Value: ref}}},
			bson.E{Key: string(f) + "_max", Value: bson.D{{Key: "$max", Value: ref}}},
			bson.E{Key: string(f) + "_avg", Value: bson.D{{Key: "$avg", Value: ref}}},
			bson.E{Key: string(f) + "_sum", Value: bson.D{{Key: "$sum", Value: ref}}},
		)
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: group}},
	}
}

func aggregateFromRow(row bson.M) domain.Aggregate {
	agg := domain.Aggregate{Fields: make(map[domain.Field]domain.FieldStats)}
	if count, ok := number(row["count"]); ok {
		agg.Count = int(*count)
	}
	for _, f := range domain.MeasurementFields {
		n, ok := number(row[string(f)+"_n"])
		if !ok || *n == 0 {
			agg.Fields[f] = domain.FieldStats{}
			continue
		}
		st := domain.FieldStats{Count: int(*n)}
		st.Min, _ = number(row[string(f)+"_min"])
		st.Max, _ = number(row[string(f)+"_max"])
		st.Avg, _ = number(row[string(f)+"_avg"])
		st.Sum, _ = number(row[string(f)+"_sum"])
		agg.Fields[f] = st
	}
	return agg
}

// number converts the numeric BSON types the server may return.
func number(v any) (*float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return nil, false
	}
	return &f, true
}

// begin applies the store deadline and records the operation duration.
func (s *Store) begin(ctx context.Context, op string) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	return ctx, func() {
		cancel()
		if s.metrics != nil {
			s.metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}
}

// translate maps driver errors onto the domain taxonomy.
func translate(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return fmt.Errorf("mongo %s: %w: %w", op, domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("mongo %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
