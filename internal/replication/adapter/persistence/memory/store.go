// Package memory provides an in-process Store implementation. It backs the
// engine's unit tests and can stand in for a replica in single-node setups.
package memory

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	apperrors "pos-replicator/internal/shared/errors"
)

// Operation names passed to Hooks.
const (
	OpListCollections  = "listCollections"
	OpListKeys         = "listKeys"
	OpFetchDocuments   = "fetchDocuments"
	OpFetchProjections = "fetchProjections"
	OpFetchAll         = "fetchAll"
	OpInsertOne        = "insertOne"
	OpInsertMany       = "insertMany"
	OpReplaceOne       = "replaceOne"
)

// Hooks lets callers observe or fault individual operations.
type Hooks struct {
	// BeforeOp runs before every operation; a non-nil error fails it.
	BeforeOp func(ctx context.Context, op, collection string) error
	// BeforeWrite runs before each document write; a non-nil error fails that
	// document only.
	BeforeWrite func(op, collection string, doc model.Document) error
}

// Store keeps collections in maps keyed by canonical document key.
type Store struct {
	name        string
	mu          sync.RWMutex
	collections map[string]map[string]model.Document
	hooks       Hooks
	pingErr     error
	calls       int64
}

var _ repository.Store = (*Store)(nil)
var _ repository.HealthChecker = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(name string) *Store {
	return &Store{name: name, collections: make(map[string]map[string]model.Document)}
}

// Name implements repository.Store.
func (s *Store) Name() string { return s.name }

// SetHooks replaces the operation hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// SetPingError makes Ping return err.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping implements repository.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Calls returns the number of collection operations served so far.
func (s *Store) Calls() int64 {
	return atomic.LoadInt64(&s.calls)
}

// Put writes docs into collection directly, bypassing hooks and counters.
func (s *Store) Put(collection string, docs ...model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.ensure(collection)
	for _, d := range docs {
		if k, ok := d.Key(); ok {
			col[k.String()] = d.Clone()
		}
	}
}

// CreateCollection registers an empty collection.
func (s *Store) CreateCollection(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(collection)
}

// Get returns a copy of the document with the canonical form of key.
func (s *Store) Get(collection string, key interface{}) (model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][model.NewDocumentKey(key).String()]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// KeyStrings returns the sorted canonical keys of collection.
func (s *Store) KeyStrings(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.collections[collection]))
	for k := range s.collections[collection] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ListCollectionNames implements repository.Store.
func (s *Store) ListCollectionNames(ctx context.Context) ([]string, error) {
	if err := s.before(ctx, OpListCollections, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Collection implements repository.Store.
func (s *Store) Collection(name string) repository.CollectionHandle {
	return &collection{store: s, name: name}
}

func (s *Store) ensure(name string) map[string]model.Document {
	col, ok := s.collections[name]
	if !ok {
		col = make(map[string]model.Document)
		s.collections[name] = col
	}
	return col
}

func (s *Store) before(ctx context.Context, op, col string) error {
	atomic.AddInt64(&s.calls, 1)
	s.mu.RLock()
	hook := s.hooks.BeforeOp
	s.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, op, col); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Store) beforeWrite(op, col string, doc model.Document) error {
	s.mu.RLock()
	hook := s.hooks.BeforeWrite
	s.mu.RUnlock()
	if hook != nil {
		return hook(op, col, doc)
	}
	return nil
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) ListKeys(ctx context.Context) (model.KeySet, error) {
	if err := c.store.before(ctx, OpListKeys, c.name); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	set := make(model.KeySet, len(c.store.collections[c.name]))
	for _, d := range c.store.collections[c.name] {
		k, _ := d.Key()
		set.Add(k)
	}
	return set, nil
}

func (c *collection) FetchDocuments(ctx context.Context, keys []model.DocumentKey) ([]model.Document, error) {
	if err := c.store.before(ctx, OpFetchDocuments, c.name); err != nil {
		return nil, err
	}
	return c.lookup(keys, nil), nil
}

func (c *collection) FetchProjections(ctx context.Context, keys []model.DocumentKey, fields []string) ([]model.Document, error) {
	if err := c.store.before(ctx, OpFetchProjections, c.name); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []string{}
	}
	return c.lookup(keys, fields), nil
}

func (c *collection) FetchAll(ctx context.Context) ([]model.Document, error) {
	if err := c.store.before(ctx, OpFetchAll, c.name); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	out := make([]model.Document, 0, len(c.store.collections[c.name]))
	for _, d := range c.store.collections[c.name] {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (c *collection) InsertOne(ctx context.Context, doc model.Document) error {
	if err := c.store.before(ctx, OpInsertOne, c.name); err != nil {
		return err
	}
	return c.insert(OpInsertOne, doc)
}

func (c *collection) InsertMany(ctx context.Context, docs []model.Document) (int, int, error) {
	if err := c.store.before(ctx, OpInsertMany, c.name); err != nil {
		return 0, 0, err
	}
	var inserted, duplicates int
	var firstErr error
	for _, d := range docs {
		err := c.insert(OpInsertMany, d)
		switch {
		case err == nil:
			inserted++
		case apperrors.IsDuplicateKey(err):
			duplicates++
		case firstErr == nil:
			firstErr = err
		}
	}
	return inserted, duplicates, firstErr
}

func (c *collection) ReplaceOne(ctx context.Context, key model.DocumentKey, doc model.Document) (bool, error) {
	if err := c.store.before(ctx, OpReplaceOne, c.name); err != nil {
		return false, err
	}
	if err := c.store.beforeWrite(OpReplaceOne, c.name, doc); err != nil {
		return false, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	col := c.store.collections[c.name]
	existing, ok := col[key.String()]
	if !ok {
		return false, nil
	}
	existingKey, _ := existing.Key()
	replacement := doc.WithKey(existingKey)
	if reflect.DeepEqual(existing, replacement) {
		return false, nil
	}
	col[key.String()] = replacement
	return true, nil
}

func (c *collection) insert(op string, doc model.Document) error {
	key, ok := doc.Key()
	if !ok {
		return apperrors.NewValidationError("document has no _id").WithDetail("collection", c.name)
	}
	if err := c.store.beforeWrite(op, c.name, doc); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	col := c.store.ensure(c.name)
	if _, exists := col[key.String()]; exists {
		return apperrors.NewDuplicateKeyError(c.name, key.String(), nil)
	}
	col[key.String()] = doc.Clone()
	return nil
}

func (c *collection) lookup(keys []model.DocumentKey, fields []string) []model.Document {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	col := c.store.collections[c.name]
	out := make([]model.Document, 0, len(keys))
	for _, k := range keys {
		d, ok := col[k.String()]
		if !ok {
			continue
		}
		if fields == nil {
			out = append(out, d.Clone())
			continue
		}
		proj := model.Document{model.IDField: d[model.IDField]}
		for _, f := range fields {
			if v, present := d[f]; present {
				proj[f] = v
			}
		}
		out = append(out, proj)
	}
	return out
}
