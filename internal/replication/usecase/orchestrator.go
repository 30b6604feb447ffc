package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	"pos-replicator/internal/shared/contextkeys"
	"pos-replicator/internal/shared/eventbus"
	"pos-replicator/internal/shared/logger"

	"github.com/google/uuid"
)

// allCollections is the collection name recorded for pass-level failures.
const allCollections = "*"

// passGuard is the single running flag shared by passes and seeds. The mutex only
// protects the flag; it is never held across a store call.
type passGuard struct {
	mu      sync.Mutex
	running bool
}

func (g *passGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *passGuard) release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *passGuard) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Orchestrator runs bidirectional passes: every eligible collection is synced
// primary -> replica then replica -> primary.
type Orchestrator struct {
	stores      repository.StoreManager
	syncer      *CollectionSyncer
	filter      *CollectionFilter
	guard       *passGuard
	events      eventbus.Publisher
	passTimeout time.Duration
	logger      logger.Logger

	mu           sync.RWMutex
	lastSyncTime time.Time
	lastPass     *model.PassResult
}

// NewOrchestrator wires an orchestrator. events may be nil.
func NewOrchestrator(stores repository.StoreManager, syncer *CollectionSyncer, filter *CollectionFilter, events eventbus.Publisher, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if filter == nil {
		filter, _ = NewCollectionFilter(nil, "", log)
	}
	if syncer == nil {
		syncer = NewCollectionSyncer(nil, log)
	}
	return &Orchestrator{
		stores: stores,
		syncer: syncer,
		filter: filter,
		guard:  &passGuard{},
		events: events,
		logger: log.WithComponent("orchestrator"),
	}
}

// SetPassTimeout bounds a whole pass. Collections not reached before the deadline
// are recorded as errors. Zero disables the bound.
func (o *Orchestrator) SetPassTimeout(d time.Duration) {
	if d >= 0 {
		o.passTimeout = d
	}
}

// IsRunning reports whether a pass or seed currently holds the running flag.
func (o *Orchestrator) IsRunning() bool {
	return o.guard.isRunning()
}

// LastSyncTime returns the end time of the most recent pass that ran.
func (o *Orchestrator) LastSyncTime() *time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastSyncTime.IsZero() {
		return nil
	}
	t := o.lastSyncTime
	return &t
}

// LastPass returns the result of the most recent pass that ran.
func (o *Orchestrator) LastPass() *model.PassResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastPass
}

// RunPass performs one bidirectional pass. It never returns an error: skips and
// per-collection failures are described by the result.
func (o *Orchestrator) RunPass(ctx context.Context) *model.PassResult {
	if !o.guard.tryAcquire() {
		o.logger.Info("Sync pass requested while another is running, skipping")
		return o.skipped(ctx, model.ReasonAlreadyRunning)
	}

	result, reason := o.guardedPass(ctx)
	if reason != "" {
		o.logger.Warnf("Sync pass skipped: %s", reason)
		return o.skipped(ctx, reason)
	}

	o.publish(ctx, eventbus.EventTypePassCompleted, result)
	return result
}

// guardedPass runs with the guard held and releases it on every exit path.
func (o *Orchestrator) guardedPass(ctx context.Context) (*model.PassResult, string) {
	defer o.guard.release()

	primary, replica, reason := o.acquireStores()
	if reason != "" {
		return nil, reason
	}

	result := o.execute(ctx, primary, replica)

	o.mu.Lock()
	o.lastSyncTime = result.FinishedAt
	o.lastPass = result
	o.mu.Unlock()
	return result, ""
}

// acquireStores checks availability before any store call is made.
func (o *Orchestrator) acquireStores() (repository.Store, repository.Store, string) {
	if !o.stores.IsPrimaryAvailable() {
		return nil, nil, model.ReasonPrimaryUnavailable
	}
	if !o.stores.IsReplicaAvailable() {
		return nil, nil, model.ReasonReplicaUnavailable
	}
	primary, err := o.stores.PrimaryHandle()
	if err != nil {
		return nil, nil, model.ReasonPrimaryUnavailable
	}
	replica, err := o.stores.ReplicaHandle()
	if err != nil {
		return nil, nil, model.ReasonReplicaUnavailable
	}
	return primary, replica, ""
}

func (o *Orchestrator) execute(ctx context.Context, primary, replica repository.Store) (result *model.PassResult) {
	result = &model.PassResult{ID: uuid.NewString(), StartedAt: time.Now()}
	ctx = context.WithValue(ctx, contextkeys.PassIDKey, result.ID)
	log := o.logger.WithContext(ctx)

	// Collection-level panics are handled in syncCollection; this catches the rest.
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic during sync pass: %v\n%s", r, debug.Stack())
			result.Errors = append(result.Errors, model.PassError{Collection: allCollections, Message: fmt.Sprintf("panic: %v", r)})
			result.FinishedAt = time.Now()
			result.Duration = result.FinishedAt.Sub(result.StartedAt)
		}
	}()

	if o.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.passTimeout)
		defer cancel()
	}

	log.Info("Starting bidirectional sync pass")

	names, err := primary.ListCollectionNames(ctx)
	if err != nil {
		log.Errorf("Failed to list collections: %v", err)
		result.Errors = append(result.Errors, model.PassError{Collection: allCollections, Message: err.Error()})
	}

	for _, name := range o.filter.Eligible(names) {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, model.PassError{Collection: name, Message: fmt.Sprintf("not synced: %v", err)})
			continue
		}

		colCtx := context.WithValue(ctx, contextkeys.CollectionKey, name)
		res, err := o.syncCollection(colCtx, primary, replica, name)
		result.CreatedForward += res.Forward.Created
		result.UpdatedForward += res.Forward.Updated
		result.CreatedReverse += res.Reverse.Created
		result.UpdatedReverse += res.Reverse.Updated
		if err != nil {
			res.Error = err.Error()
			result.Errors = append(result.Errors, model.PassError{Collection: name, Message: err.Error()})
			log.WithFields(map[string]interface{}{"collection": name}).Errorf("Collection sync failed: %v", err)
		}
		result.Collections = append(result.Collections, res)
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	log.WithFields(map[string]interface{}{
		"created_forward": result.CreatedForward,
		"updated_forward": result.UpdatedForward,
		"created_reverse": result.CreatedReverse,
		"updated_reverse": result.UpdatedReverse,
		"errors":          len(result.Errors),
		"duration_ms":     result.Duration.Milliseconds(),
	}).Info("Sync pass completed")
	return result
}

// syncCollection runs forward then reverse for one collection. A panic in either
// direction is converted into that collection's error.
func (o *Orchestrator) syncCollection(ctx context.Context, primary, replica repository.Store, name string) (res model.CollectionResult, err error) {
	res.Collection = name
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithContext(ctx).Errorf("Panic while syncing %s: %v\n%s", name, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fwdCtx := context.WithValue(ctx, contextkeys.DirectionKey, string(model.DirectionForward))
	res.Forward, err = o.syncer.SyncCollection(fwdCtx, primary, replica, name)
	if err != nil {
		return res, fmt.Errorf("%s: %w", model.DirectionForward, err)
	}

	revCtx := context.WithValue(ctx, contextkeys.DirectionKey, string(model.DirectionReverse))
	res.Reverse, err = o.syncer.SyncCollection(revCtx, replica, primary, name)
	if err != nil {
		return res, fmt.Errorf("%s: %w", model.DirectionReverse, err)
	}
	return res, nil
}

func (o *Orchestrator) skipped(ctx context.Context, reason string) *model.PassResult {
	result := model.SkippedPass(reason)
	o.publish(ctx, eventbus.EventTypePassSkipped, result)
	return result
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, data interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, eventbus.NewBasicEventWithSource(eventType, data, "orchestrator")); err != nil {
		o.logger.Warnf("Failed to publish %s: %v", eventType, err)
	}
}
