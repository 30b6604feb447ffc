// Package redis keeps a bounded history of sync passes in a Redis stream.
package redis

import (
	"context"
	"strconv"
	"time"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/replication/usecase"
	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/eventbus"
	"pos-replicator/internal/shared/logger"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "pos:sync:passes"

// PassJournal appends one entry per pass or seed to a Redis stream trimmed to
// roughly maxLen entries.
type PassJournal struct {
	client *goredis.Client
	stream string
	maxLen int64
	logger logger.Logger
}

var _ usecase.PassJournal = (*PassJournal)(nil)

// NewPassJournal creates a journal on stream.
func NewPassJournal(client *goredis.Client, stream string, maxLen int64, log logger.Logger) *PassJournal {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PassJournal{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: log.WithComponent("pass-journal").WithFields(map[string]interface{}{"stream": stream}),
	}
}

// Ping checks the Redis connection.
func (j *PassJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

// Append writes entry to the stream.
func (j *PassJournal) Append(ctx context.Context, entry model.JournalEntry) error {
	_, err := j.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: j.stream,
		MaxLen: j.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":             entry.ID,
			"kind":           entry.Kind,
			"outcome":        entry.Outcome,
			"reason":         entry.Reason,
			"startedAt":      entry.StartedAt.UnixMilli(),
			"durationMs":     entry.DurationMillis,
			"createdForward": entry.CreatedForward,
			"updatedForward": entry.UpdatedForward,
			"createdReverse": entry.CreatedReverse,
			"updatedReverse": entry.UpdatedReverse,
			"errorCount":     entry.ErrorCount,
		},
	}).Result()
	if err != nil {
		return apperrors.NewInfrastructureError("failed to append pass journal entry").
			WithCause(err).
			WithComponent("pass-journal")
	}

	j.logger.Debugf("Journaled %s %s (%s)", entry.Kind, entry.ID, entry.Outcome)
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *PassJournal) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = usecase.DefaultRecentPasses
	}
	msgs, err := j.client.XRevRangeN(ctx, j.stream, "+", "-", int64(limit)).Result()
	if err != nil && err != goredis.Nil {
		return nil, apperrors.NewInfrastructureError("failed to read pass journal").
			WithCause(err).
			WithCode("journal_read_failed").
			WithComponent("pass-journal")
	}

	entries := make([]model.JournalEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, parseEntry(msg))
	}
	return entries, nil
}

// Subscribe journals every pass and seed published on bus. Journal failures are
// logged and never reported back to the publisher.
func (j *PassJournal) Subscribe(bus *eventbus.EventBus) {
	bus.Subscribe(eventbus.EventTypePassCompleted, func(ctx context.Context, e eventbus.Event) error {
		if p, ok := e.Data().(*model.PassResult); ok {
			j.appendQuietly(ctx, model.JournalEntryFromPass(p))
		}
		return nil
	})
	bus.Subscribe(eventbus.EventTypeSeedCompleted, func(ctx context.Context, e eventbus.Event) error {
		if s, ok := e.Data().(*model.SeedResult); ok && !s.Skipped {
			j.appendQuietly(ctx, model.JournalEntryFromSeed(s))
		}
		return nil
	})
}

func (j *PassJournal) appendQuietly(ctx context.Context, entry model.JournalEntry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := j.Append(writeCtx, entry); err != nil {
		j.logger.Warnf("Pass journal write failed: %v", err)
	}
}

func parseEntry(msg goredis.XMessage) model.JournalEntry {
	entry := model.JournalEntry{
		ID:      stringValue(msg.Values, "id"),
		Kind:    stringValue(msg.Values, "kind"),
		Outcome: stringValue(msg.Values, "outcome"),
		Reason:  stringValue(msg.Values, "reason"),
	}
	if ms := intValue(msg.Values, "startedAt"); ms > 0 {
		entry.StartedAt = time.UnixMilli(ms).UTC()
	}
	entry.DurationMillis = intValue(msg.Values, "durationMs")
	entry.CreatedForward = int(intValue(msg.Values, "createdForward"))
	entry.UpdatedForward = int(intValue(msg.Values, "updatedForward"))
	entry.CreatedReverse = int(intValue(msg.Values, "createdReverse"))
	entry.UpdatedReverse = int(intValue(msg.Values, "updatedReverse"))
	entry.ErrorCount = int(intValue(msg.Values, "errorCount"))
	return entry
}

func stringValue(values map[string]interface{}, key string) string {
	if s, ok := values[key].(string); ok {
		return s
	}
	return ""
}

func intValue(values map[string]interface{}, key string) int64 {
	n, err := strconv.ParseInt(stringValue(values, key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
