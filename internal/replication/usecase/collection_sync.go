package usecase

import (
	"context"
	"fmt"
	"time"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/logger"
)

// CollectionSyncer copies one collection from a source store to a destination
// store: documents missing at the destination are inserted, documents whose source
// timestamp is strictly newer are replaced. Nothing is ever deleted.
type CollectionSyncer struct {
	resolver *model.TimestampResolver
	logger   logger.Logger
}

// NewCollectionSyncer creates a syncer comparing documents with resolver.
func NewCollectionSyncer(resolver *model.TimestampResolver, log logger.Logger) *CollectionSyncer {
	if resolver == nil {
		resolver = model.NewTimestampResolver(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &CollectionSyncer{resolver: resolver, logger: log.WithComponent("collection-sync")}
}

// SyncCollection runs the missing-document phase then the staleness phase for
// collection name. Per-document write failures are logged and skipped; the
// returned error only reports enumeration or fetch failures.
func (s *CollectionSyncer) SyncCollection(ctx context.Context, source, destination repository.Store, name string) (model.CollectionCounts, error) {
	var counts model.CollectionCounts
	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"collection": name,
		"source":     source.Name(),
		"dest":       destination.Name(),
	})

	src := source.Collection(name)
	dst := destination.Collection(name)

	srcKeys, err := src.ListKeys(ctx)
	if err != nil {
		return counts, fmt.Errorf("list keys in %s: %w", source.Name(), err)
	}
	dstKeys, err := dst.ListKeys(ctx)
	if err != nil {
		return counts, fmt.Errorf("list keys in %s: %w", destination.Name(), err)
	}

	if missing := srcKeys.Difference(dstKeys); len(missing) > 0 {
		created, err := s.insertMissing(ctx, log, src, dst, missing)
		counts.Created = created
		if err != nil {
			return counts, err
		}
	}

	stale, err := s.findStale(ctx, src, dst, srcKeys, dstKeys)
	if err != nil {
		return counts, err
	}
	if len(stale) > 0 {
		updated, err := s.replaceStale(ctx, log, src, dst, stale, dstKeys)
		counts.Updated = updated
		if err != nil {
			return counts, err
		}
	}

	if counts.Created > 0 || counts.Updated > 0 {
		log.WithFields(map[string]interface{}{"created": counts.Created, "updated": counts.Updated}).Info("Collection synchronized")
	}
	return counts, nil
}

func (s *CollectionSyncer) insertMissing(ctx context.Context, log logger.Logger, src, dst repository.CollectionHandle, missing []model.DocumentKey) (int, error) {
	docs, err := src.FetchDocuments(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("fetch missing documents: %w", err)
	}

	created := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		err := dst.InsertOne(ctx, doc)
		switch {
		case err == nil:
			created++
		case apperrors.IsDuplicateKey(err):
			log.Debugf("Document %v created concurrently, skipping insert", doc[model.IDField])
		default:
			log.Warnf("Failed to insert document %v: %v", doc[model.IDField], err)
		}
	}
	return created, nil
}

// findStale compares projections of the documents present on both sides and returns
// the source keys whose timestamp is strictly newer than the destination's.
func (s *CollectionSyncer) findStale(ctx context.Context, src, dst repository.CollectionHandle, srcKeys, dstKeys model.KeySet) ([]model.DocumentKey, error) {
	srcCommon := srcKeys.Intersection(dstKeys)
	if len(srcCommon) == 0 {
		return nil, nil
	}
	fields := s.resolver.Fields()

	srcProjections, err := src.FetchProjections(ctx, srcCommon, fields)
	if err != nil {
		return nil, fmt.Errorf("fetch source projections: %w", err)
	}
	dstProjections, err := dst.FetchProjections(ctx, dstKeys.Intersection(srcKeys), fields)
	if err != nil {
		return nil, fmt.Errorf("fetch destination projections: %w", err)
	}

	srcTimes := s.timestamps(srcProjections)
	dstTimes := s.timestamps(dstProjections)

	stale := make([]model.DocumentKey, 0)
	for _, key := range srcCommon {
		st, ok := srcTimes[key.String()]
		if !ok {
			continue
		}
		dt, ok := dstTimes[key.String()]
		if !ok {
			continue
		}
		if st.After(dt) {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

func (s *CollectionSyncer) replaceStale(ctx context.Context, log logger.Logger, src, dst repository.CollectionHandle, stale []model.DocumentKey, dstKeys model.KeySet) (int, error) {
	docs, err := src.FetchDocuments(ctx, stale)
	if err != nil {
		return 0, fmt.Errorf("fetch stale documents: %w", err)
	}

	updated := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		srcKey, ok := doc.Key()
		if !ok {
			continue
		}
		dstKey, ok := dstKeys.Get(srcKey)
		if !ok {
			continue
		}
		modified, err := dst.ReplaceOne(ctx, dstKey, doc)
		if err != nil {
			log.Warnf("Failed to replace document %s: %v", dstKey, err)
			continue
		}
		if modified {
			updated++
		}
	}
	return updated, nil
}

// timestamps maps canonical key to derived timestamp, leaving out unknowns.
func (s *CollectionSyncer) timestamps(projections []model.Document) map[string]time.Time {
	out := make(map[string]time.Time, len(projections))
	for _, p := range projections {
		key, ok := p.Key()
		if !ok {
			continue
		}
		if ts, ok := s.resolver.Resolve(p); ok {
			out[key.String()] = ts
		}
	}
	return out
}
