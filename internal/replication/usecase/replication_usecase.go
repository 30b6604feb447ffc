package usecase

import (
	"context"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/domain/repository"
	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/logger"
)

// DefaultRecentPasses is the number of journal entries returned when no limit is given.
const DefaultRecentPasses = 20

// PassJournal is the read side of the pass history.
type PassJournal interface {
	Recent(ctx context.Context, limit int) ([]model.JournalEntry, error)
}

// ReplicationUsecase is the engine surface exposed to the host.
type ReplicationUsecase interface {
	RunPass(ctx context.Context) *model.PassResult
	SeedReplica(ctx context.Context) *model.SeedResult
	StartPeriodic(intervalMillis int64)
	StopPeriodic()
	GetStatus() model.Status
	RecentPasses(ctx context.Context, limit int) ([]model.JournalEntry, error)
}

type replicationUsecase struct {
	stores       repository.StoreManager
	orchestrator *Orchestrator
	seeder       *Seeder
	scheduler    *Scheduler
	journal      PassJournal
	logger       logger.Logger
}

// NewReplicationUsecase assembles the engine. journal may be nil when pass history
// is not kept.
func NewReplicationUsecase(
	stores repository.StoreManager,
	orchestrator *Orchestrator,
	seeder *Seeder,
	scheduler *Scheduler,
	journal PassJournal,
	log logger.Logger,
) ReplicationUsecase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &replicationUsecase{
		stores:       stores,
		orchestrator: orchestrator,
		seeder:       seeder,
		scheduler:    scheduler,
		journal:      journal,
		logger:       log.WithComponent("replication-usecase"),
	}
}

func (uc *replicationUsecase) RunPass(ctx context.Context) *model.PassResult {
	return uc.orchestrator.RunPass(ctx)
}

func (uc *replicationUsecase) SeedReplica(ctx context.Context) *model.SeedResult {
	return uc.seeder.SeedReplica(ctx)
}

func (uc *replicationUsecase) StartPeriodic(intervalMillis int64) {
	uc.scheduler.StartPeriodic(intervalMillis)
}

func (uc *replicationUsecase) StopPeriodic() {
	uc.scheduler.StopPeriodic()
}

func (uc *replicationUsecase) GetStatus() model.Status {
	return model.Status{
		IsRunning:        uc.orchestrator.IsRunning(),
		LastSyncTime:     uc.orchestrator.LastSyncTime(),
		PeriodicEnabled:  uc.scheduler.Enabled(),
		IntervalMillis:   uc.scheduler.IntervalMillis(),
		PrimaryAvailable: uc.stores.IsPrimaryAvailable(),
		ReplicaAvailable: uc.stores.IsReplicaAvailable(),
		LastPass:         uc.orchestrator.LastPass(),
	}
}

func (uc *replicationUsecase) RecentPasses(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if uc.journal == nil {
		return nil, apperrors.NewUnavailableError("pass journal").
			WithCause(apperrors.ErrJournalDisabled).
			WithCode("journal_unavailable")
	}
	if limit <= 0 {
		limit = DefaultRecentPasses
	}
	return uc.journal.Recent(ctx, limit)
}
