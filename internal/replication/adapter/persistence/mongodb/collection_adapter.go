package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DatabaseInterface is the slice of *mongo.Database the store needs.
type DatabaseInterface interface {
	Collection(name string) CollectionInterface
	ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error)
	Ping(ctx context.Context) error
}

// CollectionInterface is the slice of *mongo.Collection the store needs.
type CollectionInterface interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (CursorInterface, error)
	InsertOne(ctx context.Context, doc interface{}) (interface{}, error)
	InsertMany(ctx context.Context, docs []interface{}, opts ...*options.InsertManyOptions) error
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (UpdateResultInterface, error)
}

type UpdateResultInterface interface {
	Matched() int64
	Modified() int64
}

type CursorInterface interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Close(ctx context.Context) error
	Err() error
}

// MongoDatabaseAdapter makes *mongo.Database satisfy DatabaseInterface.
type MongoDatabaseAdapter struct {
	db *mongo.Database
}

func NewMongoDatabaseAdapter(db *mongo.Database) *MongoDatabaseAdapter {
	return &MongoDatabaseAdapter{db: db}
}

func (a *MongoDatabaseAdapter) Collection(name string) CollectionInterface {
	return &MongoCollectionAdapter{col: a.db.Collection(name)}
}

func (a *MongoDatabaseAdapter) ListCollectionNames(ctx context.Context, filter interface{}) ([]string, error) {
	return a.db.ListCollectionNames(ctx, filter)
}

func (a *MongoDatabaseAdapter) Ping(ctx context.Context) error {
	return a.db.Client().Ping(ctx, readpref.Primary())
}

// MongoCollectionAdapter makes *mongo.Collection satisfy CollectionInterface.
type MongoCollectionAdapter struct {
	col *mongo.Collection
}

func (m *MongoCollectionAdapter) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (CursorInterface, error) {
	cur, err := m.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (m *MongoCollectionAdapter) InsertOne(ctx context.Context, doc interface{}) (interface{}, error) {
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (m *MongoCollectionAdapter) InsertMany(ctx context.Context, docs []interface{}, opts ...*options.InsertManyOptions) error {
	_, err := m.col.InsertMany(ctx, docs, opts...)
	return err
}

func (m *MongoCollectionAdapter) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (UpdateResultInterface, error) {
	res, err := m.col.ReplaceOne(ctx, filter, replacement, opts...)
	if err != nil {
		return nil, err
	}
	return &MongoUpdateResultAdapter{matched: res.MatchedCount, modified: res.ModifiedCount}, nil
}

// MongoUpdateResultAdapter wraps the matched and modified counts
type MongoUpdateResultAdapter struct {
	matched  int64
	modified int64
}

func (m *MongoUpdateResultAdapter) Matched() int64  { return m.matched }
func (m *MongoUpdateResultAdapter) Modified() int64 { return m.modified }
