package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/shared/database"
	apperrors "pos-replicator/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJournal struct {
	entries []model.JournalEntry
	limit   int
	err     error
}

func (j *stubJournal) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	j.limit = limit
	return j.entries, j.err
}

func newTestUsecase(t *testing.T, f *fixture, journal PassJournal) ReplicationUsecase {
	t.Helper()
	orch := f.orchestrator(t)
	return NewReplicationUsecase(
		f.stores,
		orch,
		NewSeeder(orch, nil),
		NewScheduler(context.Background(), orch, f.stores, nil),
		journal,
		nil,
	)
}

func TestReplicationUsecase_GetStatus(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1))
	uc := newTestUsecase(t, f, nil)

	status := uc.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Nil(t, status.LastSyncTime)
	assert.False(t, status.PeriodicEnabled)
	assert.True(t, status.PrimaryAvailable)
	assert.True(t, status.ReplicaAvailable)

	result := uc.RunPass(context.Background())
	uc.StartPeriodic(int64(time.Hour / time.Millisecond))
	defer uc.StopPeriodic()

	status = uc.GetStatus()
	require.NotNil(t, status.LastSyncTime)
	assert.Equal(t, result.FinishedAt, *status.LastSyncTime)
	assert.True(t, status.PeriodicEnabled)
	assert.Equal(t, int64(3600000), status.IntervalMillis)
	assert.Same(t, result, status.LastPass)

	f.stores.MarkAvailability(context.Background(), database.RoleReplica, errors.New("down"))
	assert.False(t, uc.GetStatus().ReplicaAvailable)
}

func TestReplicationUsecase_SeedThenPass(t *testing.T) {
	f := newFixture(t)
	f.primary.Put("bills", doc(1, t1), doc(2, t1))
	uc := newTestUsecase(t, f, nil)

	seed := uc.SeedReplica(context.Background())
	assert.Equal(t, 2, seed.TotalSynced)

	pass := uc.RunPass(context.Background())
	assert.Zero(t, pass.Moved())
}

func TestReplicationUsecase_RecentPasses(t *testing.T) {
	f := newFixture(t)
	journal := &stubJournal{entries: []model.JournalEntry{{ID: "p1", Kind: model.KindPass}}}
	uc := newTestUsecase(t, f, journal)

	entries, err := uc.RecentPasses(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, DefaultRecentPasses, journal.limit)

	_, err = uc.RecentPasses(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, journal.limit)
}

func TestReplicationUsecase_RecentPassesWithoutJournal(t *testing.T) {
	uc := newTestUsecase(t, newFixture(t), nil)

	_, err := uc.RecentPasses(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrJournalDisabled)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
	assert.Equal(t, "journal_unavailable", apperrors.CodeOf(err, ""))
}
