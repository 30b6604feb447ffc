package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	"pos-replicator/internal/shared/contextkeys"
	"pos-replicator/internal/shared/eventbus"
	"pos-replicator/internal/shared/logger"

	"github.com/google/uuid"
)

// Seeder performs the one-directional catch-up copy from the primary into the
// replica. It inserts only what the replica lacks and never overwrites.
type Seeder struct {
	stores repository.StoreManager
	filter *CollectionFilter
	guard  *passGuard
	events eventbus.Publisher
	logger logger.Logger
}

// NewSeeder creates a seeder sharing the orchestrator's running flag, so a seed
// and a pass never overlap.
func NewSeeder(orchestrator *Orchestrator, log logger.Logger) *Seeder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Seeder{
		stores: orchestrator.stores,
		filter: orchestrator.filter,
		guard:  orchestrator.guard,
		events: orchestrator.events,
		logger: log.WithComponent("seeder"),
	}
}

// SeedReplica copies every primary document missing from the replica.
func (s *Seeder) SeedReplica(ctx context.Context) *model.SeedResult {
	if !s.guard.tryAcquire() {
		s.logger.Info("Seed requested while a sync is running, skipping")
		return &model.SeedResult{Skipped: true, Reason: model.ReasonAlreadyRunning, StartedAt: time.Now()}
	}

	result := func() *model.SeedResult {
		defer s.guard.release()
		return s.run(ctx)
	}()

	if s.events != nil {
		if err := s.events.Publish(ctx, eventbus.NewBasicEventWithSource(eventbus.EventTypeSeedCompleted, result, "seeder")); err != nil {
			s.logger.Warnf("Failed to publish seed result: %v", err)
		}
	}
	return result
}

func (s *Seeder) run(ctx context.Context) (result *model.SeedResult) {
	result = &model.SeedResult{StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic during replica seed: %v\n%s", r, debug.Stack())
			result.Errors = append(result.Errors, model.PassError{Collection: allCollections, Message: fmt.Sprintf("panic: %v", r)})
			result.Duration = time.Since(result.StartedAt)
		}
	}()

	if !s.stores.IsPrimaryAvailable() {
		result.Skipped, result.Reason = true, model.ReasonPrimaryUnavailable
		return result
	}
	if !s.stores.IsReplicaAvailable() {
		result.Skipped, result.Reason = true, model.ReasonReplicaUnavailable
		return result
	}
	primary, err := s.stores.PrimaryHandle()
	if err != nil {
		result.Skipped, result.Reason = true, model.ReasonPrimaryUnavailable
		return result
	}
	replica, err := s.stores.ReplicaHandle()
	if err != nil {
		result.Skipped, result.Reason = true, model.ReasonReplicaUnavailable
		return result
	}

	result.ID = uuid.NewString()
	ctx = context.WithValue(ctx, contextkeys.PassIDKey, result.ID)
	log := s.logger.WithContext(ctx)
	log.Info("Seeding replica from primary")

	names, err := primary.ListCollectionNames(ctx)
	if err != nil {
		result.Errors = append(result.Errors, model.PassError{Collection: allCollections, Message: err.Error()})
	}

	for _, name := range s.filter.Eligible(names) {
		colCtx := context.WithValue(ctx, contextkeys.CollectionKey, name)
		synced, skipped, err := s.seedCollection(colCtx, primary, replica, name)
		result.TotalSynced += synced
		result.TotalSkipped += skipped
		if err != nil {
			log.WithFields(map[string]interface{}{"collection": name}).Errorf("Seed failed: %v", err)
			result.Errors = append(result.Errors, model.PassError{Collection: name, Message: err.Error()})
			continue
		}
		result.CollectionsProcessed++
	}

	result.Duration = time.Since(result.StartedAt)
	log.WithFields(map[string]interface{}{
		"collections": result.CollectionsProcessed,
		"synced":      result.TotalSynced,
		"skipped":     result.TotalSkipped,
		"errors":      len(result.Errors),
	}).Info("Replica seed completed")
	return result
}

func (s *Seeder) seedCollection(ctx context.Context, primary, replica repository.Store, name string) (synced, skipped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	docs, err := primary.Collection(name).FetchAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch primary documents: %w", err)
	}
	if len(docs) == 0 {
		return 0, 0, nil
	}

	dst := replica.Collection(name)
	present, err := dst.ListKeys(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list replica keys: %w", err)
	}

	absent := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		key, ok := doc.Key()
		if !ok || present.Has(key) {
			skipped++
			continue
		}
		absent = append(absent, doc)
	}
	if len(absent) == 0 {
		return 0, skipped, nil
	}

	inserted, duplicates, err := dst.InsertMany(ctx, absent)
	return inserted, skipped + duplicates, err
}
