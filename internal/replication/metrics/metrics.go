// Package metrics exposes replication counters to Prometheus. Collectors are fed
// from event bus notifications so the engine itself stays unaware of them.
package metrics

import (
	"context"

	"pos-replicator/internal/replication/domain/model"
	"pos-replicator/internal/shared/database"
	"pos-replicator/internal/shared/eventbus"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_documents_created_total",
		Help: "Cumulative number of documents inserted into the opposite store, by direction.",
	}, []string{"direction"})
	documentsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_documents_updated_total",
		Help: "Cumulative number of stale documents replaced, by direction.",
	}, []string{"direction"})
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_passes_total",
		Help: "Cumulative number of sync passes, by outcome (ok, partial, skipped).",
	}, []string{"outcome"})
	collectionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sync_collection_errors_total",
		Help: "Cumulative number of per-collection failures recorded by passes and seeds.",
	})
	passDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_pass_duration_seconds",
		Help:    "Wall time of executed sync passes.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	seedDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_seed_documents_total",
		Help: "Cumulative number of documents handled by replica seeding, by result (synced, skipped).",
	}, []string{"result"})
	storeAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_sync_store_available",
		Help: "Whether the store is currently reachable (1) or not (0).",
	}, []string{"store"})
)

// RecordPass adds a pass result to the collectors.
func RecordPass(p *model.PassResult) {
	passesTotal.WithLabelValues(p.Outcome()).Inc()
	if p.Skipped {
		return
	}
	forward, reverse := string(model.DirectionForward), string(model.DirectionReverse)
	documentsCreatedTotal.WithLabelValues(forward).Add(float64(p.CreatedForward))
	documentsUpdatedTotal.WithLabelValues(forward).Add(float64(p.UpdatedForward))
	documentsCreatedTotal.WithLabelValues(reverse).Add(float64(p.CreatedReverse))
	documentsUpdatedTotal.WithLabelValues(reverse).Add(float64(p.UpdatedReverse))
	collectionErrorsTotal.Add(float64(len(p.Errors)))
	passDurationSeconds.Observe(p.Duration.Seconds())
}

// RecordSeed adds a seed result to the collectors.
func RecordSeed(s *model.SeedResult) {
	if s.Skipped {
		return
	}
	seedDocumentsTotal.WithLabelValues("synced").Add(float64(s.TotalSynced))
	seedDocumentsTotal.WithLabelValues("skipped").Add(float64(s.TotalSkipped))
	collectionErrorsTotal.Add(float64(len(s.Errors)))
}

// SetStoreAvailable updates the availability gauge of store.
func SetStoreAvailable(store string, available bool) {
	v := 0.0
	if available {
		v = 1
	}
	storeAvailable.WithLabelValues(store).Set(v)
}

// Subscribe feeds the collectors from bus.
func Subscribe(bus *eventbus.EventBus) {
	bus.Subscribe(eventbus.EventTypePassCompleted, onPass)
	bus.Subscribe(eventbus.EventTypePassSkipped, onPass)
	bus.Subscribe(eventbus.EventTypeSeedCompleted, func(ctx context.Context, e eventbus.Event) error {
		if s, ok := e.Data().(*model.SeedResult); ok {
			RecordSeed(s)
		}
		return nil
	})
	bus.Subscribe(eventbus.EventTypeStoreAvailability, func(ctx context.Context, e eventbus.Event) error {
		if c, ok := e.Data().(database.AvailabilityChange); ok {
			SetStoreAvailable(c.Store, c.Available)
		}
		return nil
	})
}

func onPass(ctx context.Context, e eventbus.Event) error {
	if p, ok := e.Data().(*model.PassResult); ok {
		RecordPass(p)
	}
	return nil
}

// Handler serves the default Prometheus registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
