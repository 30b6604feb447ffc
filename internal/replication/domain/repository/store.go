package repository

import (
	"context"

	"pos-replicator/internal/replication/domain/model"
)

// Store is one of the two replicated data stores.
type Store interface {
	// Name identifies the store in logs and results ("primary", "replica").
	Name() string
	// ListCollectionNames enumerates the collections currently present.
	ListCollectionNames(ctx context.Context) ([]string, error)
	// Collection returns a handle to the named collection. It never fails; errors
	// surface on the first operation.
	Collection(name string) CollectionHandle
}

// CollectionHandle is the entire access surface the engine needs from a backend
// for one collection.
type CollectionHandle interface {
	// ListKeys enumerates every identifier in the collection.
	ListKeys(ctx context.Context) (model.KeySet, error)
	// FetchDocuments returns the full documents for keys. Keys that no longer
	// exist are silently absent from the result.
	FetchDocuments(ctx context.Context, keys []model.DocumentKey) ([]model.Document, error)
	// FetchProjections returns only the identifier and the given fields for keys.
	FetchProjections(ctx context.Context, keys []model.DocumentKey, fields []string) ([]model.Document, error)
	// FetchAll returns every document in the collection.
	FetchAll(ctx context.Context) ([]model.Document, error)
	// InsertOne inserts doc. A clash on the identifier returns an error for which
	// errors.IsDuplicateKey is true.
	InsertOne(ctx context.Context, doc model.Document) error
	// InsertMany inserts docs without stopping at the first failure. Documents
	// rejected as duplicates are counted in duplicates; err reports any other failure.
	InsertMany(ctx context.Context, docs []model.Document) (inserted int, duplicates int, err error)
	// ReplaceOne overwrites the document identified by key with doc. modified is
	// false when nothing changed or no document matched.
	ReplaceOne(ctx context.Context, key model.DocumentKey, doc model.Document) (modified bool, err error)
}

// HealthChecker is implemented by stores that can verify their connection.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StoreManager hands out the two stores and reports whether each is reachable.
type StoreManager interface {
	IsPrimaryAvailable() bool
	IsReplicaAvailable() bool
	PrimaryHandle() (Store, error)
	ReplicaHandle() (Store, error)
}

// Prober is implemented by store managers that can refresh availability.
type Prober interface {
	Probe(ctx context.Context) error
}
