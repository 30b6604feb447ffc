package mongodb

import (
	"context"
	"errors"
	"fmt"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultBatchSize caps the number of identifiers sent in a single $in filter and
// the number of documents per InsertMany.
const DefaultBatchSize = 500

// Server error codes reported for unique index violations.
var duplicateKeyCodes = map[int]struct{}{11000: {}, 11001: {}, 12582: {}}

// Store exposes one MongoDB database as a replication store.
type Store struct {
	name      string
	db        DatabaseInterface
	batchSize int
	logger    logger.Logger
}

var _ repository.Store = (*Store)(nil)
var _ repository.HealthChecker = (*Store)(nil)

// NewStore wraps a *mongo.Database.
func NewStore(name string, db *mongo.Database, batchSize int, log logger.Logger) *Store {
	return NewStoreWithDatabase(name, NewMongoDatabaseAdapter(db), batchSize, log)
}

// NewStoreWithDatabase wraps any DatabaseInterface implementation.
func NewStoreWithDatabase(name string, db DatabaseInterface, batchSize int, log logger.Logger) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{
		name:      name,
		db:        db,
		batchSize: batchSize,
		logger:    log.WithComponent("mongo-store").WithFields(map[string]interface{}{"store": name}),
	}
}

// Name implements repository.Store.
func (s *Store) Name() string { return s.name }

// Ping implements repository.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ListCollectionNames returns regular collections only; views cannot be written.
func (s *Store) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "type", Value: "collection"}})
	if err != nil {
		return nil, apperrors.NewInfrastructureError("failed to list collections").WithCause(err).WithDetail("store", s.name)
	}
	return names, nil
}

// Collection implements repository.Store.
func (s *Store) Collection(name string) repository.CollectionHandle {
	return &collectionHandle{store: s, name: name, col: s.db.Collection(name)}
}

type collectionHandle struct {
	store *Store
	name  string
	col   CollectionInterface
}

func (h *collectionHandle) ListKeys(ctx context.Context) (model.KeySet, error) {
	opts := options.Find().SetProjection(bson.M{model.IDField: 1})
	docs, err := h.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	set := make(model.KeySet, len(docs))
	for _, d := range docs {
		if k, ok := d.Key(); ok {
			set.Add(k)
		}
	}
	return set, nil
}

func (h *collectionHandle) FetchDocuments(ctx context.Context, keys []model.DocumentKey) ([]model.Document, error) {
	return h.fetchByKeys(ctx, keys, nil)
}

func (h *collectionHandle) FetchProjections(ctx context.Context, keys []model.DocumentKey, fields []string) ([]model.Document, error) {
	projection := bson.M{model.IDField: 1}
	for _, f := range fields {
		projection[f] = 1
	}
	return h.fetchByKeys(ctx, keys, projection)
}

func (h *collectionHandle) FetchAll(ctx context.Context) ([]model.Document, error) {
	return h.find(ctx, bson.M{}, options.Find())
}

func (h *collectionHandle) InsertOne(ctx context.Context, doc model.Document) error {
	if _, err := h.col.InsertOne(ctx, bson.M(doc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			key, _ := doc.Key()
			return apperrors.NewDuplicateKeyError(h.name, key.String(), err)
		}
		return h.wrap("insert document", err)
	}
	return nil
}

func (h *collectionHandle) InsertMany(ctx context.Context, docs []model.Document) (int, int, error) {
	var inserted, duplicates int
	var failures []error

	for start := 0; start < len(docs); start += h.store.batchSize {
		end := min(start+h.store.batchSize, len(docs))
		batch := make([]interface{}, 0, end-start)
		for _, d := range docs[start:end] {
			batch = append(batch, bson.M(d))
		}

		err := h.col.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
		if err == nil {
			inserted += len(batch)
			continue
		}

		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			failures = append(failures, err)
			continue
		}
		inserted += len(batch) - len(bwe.WriteErrors)
		for _, we := range bwe.WriteErrors {
			if _, dup := duplicateKeyCodes[we.Code]; dup {
				duplicates++
				continue
			}
			failures = append(failures, fmt.Errorf("document %d: %s", start+we.Index, we.Message))
		}
		if bwe.WriteConcernError != nil {
			failures = append(failures, fmt.Errorf("write concern: %s", bwe.WriteConcernError.Message))
		}
	}

	if len(failures) > 0 {
		return inserted, duplicates, h.wrap("bulk insert", errors.Join(failures...))
	}
	return inserted, duplicates, nil
}

func (h *collectionHandle) ReplaceOne(ctx context.Context, key model.DocumentKey, doc model.Document) (bool, error) {
	filter := bson.M{model.IDField: key.Value()}
	res, err := h.col.ReplaceOne(ctx, filter, bson.M(doc.WithKey(key)))
	if err != nil {
		return false, h.wrap("replace document", err)
	}
	return res.Modified() > 0, nil
}

func (h *collectionHandle) fetchByKeys(ctx context.Context, keys []model.DocumentKey, projection bson.M) ([]model.Document, error) {
	out := make([]model.Document, 0, len(keys))
	for start := 0; start < len(keys); start += h.store.batchSize {
		end := min(start+h.store.batchSize, len(keys))
		ids := make([]interface{}, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, k.Value())
		}

		opts := options.Find()
		if projection != nil {
			opts.SetProjection(projection)
		}
		docs, err := h.find(ctx, bson.M{model.IDField: bson.M{"$in": ids}}, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

func (h *collectionHandle) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]model.Document, error) {
	cur, err := h.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, h.wrap("find documents", err)
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil {
			h.store.logger.Debugf("Cursor close failed for %s: %v", h.name, cerr)
		}
	}()

	var out []model.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, h.wrap("decode document", err)
		}
		out = append(out, model.Document(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, h.wrap("iterate cursor", err)
	}
	return out, nil
}

func (h *collectionHandle) wrap(op string, err error) error {
	return apperrors.NewInfrastructureError(fmt.Sprintf("failed to %s", op)).
		WithCause(err).
		WithComponent("mongo-store").
		WithDetail("store", h.store.name).
		WithDetail("collection", h.name)
}
