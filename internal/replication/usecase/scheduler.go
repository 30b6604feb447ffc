package usecase

import (
	"context"
	"sync"
	"time"

	"pos-replicator/internal/replication/domain/repository"
	"pos-replicator/internal/shared/logger"
)

// Scheduler triggers a pass on a fixed interval. Ticks are dropped while the
// previous scheduled pass is still running; a tick that lands on a manually
// triggered pass yields a skipped pass.
type Scheduler struct {
	orchestrator *Orchestrator
	prober       repository.Prober
	baseCtx      context.Context
	logger       logger.Logger

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
}

// NewScheduler creates a stopped scheduler. ctx is the parent of every scheduled
// pass; prober, if non-nil, refreshes store availability before each tick's pass.
func NewScheduler(ctx context.Context, orchestrator *Orchestrator, prober repository.Prober, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scheduler{
		orchestrator: orchestrator,
		prober:       prober,
		baseCtx:      ctx,
		logger:       log.WithComponent("scheduler"),
	}
}

// StartPeriodic arms the timer. A non-positive interval disables periodic sync.
// Calling it while armed re-arms with the new interval.
func (s *Scheduler) StartPeriodic(intervalMillis int64) {
	if intervalMillis <= 0 {
		s.logger.Infof("Periodic sync disabled (interval %dms)", intervalMillis)
		s.StopPeriodic()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	s.interval = time.Duration(intervalMillis) * time.Millisecond
	s.stop = make(chan struct{})
	go s.loop(s.interval, s.stop)

	s.logger.Infof("Periodic sync started every %s", s.interval)
}

// StopPeriodic disarms the timer. It does not cancel a pass already in flight and
// is safe to call repeatedly.
func (s *Scheduler) StopPeriodic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.interval = 0
	s.logger.Info("Periodic sync stopped")
}

// Enabled reports whether the timer is armed.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// IntervalMillis returns the armed interval, or 0 when disabled.
func (s *Scheduler) IntervalMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval.Milliseconds()
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if s.baseCtx.Err() != nil {
				return
			}
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if s.prober != nil {
		if err := s.prober.Probe(s.baseCtx); err != nil {
			s.logger.Debugf("Store probe reported failures: %v", err)
		}
	}
	result := s.orchestrator.RunPass(s.baseCtx)
	if result.Skipped {
		s.logger.Debugf("Scheduled pass skipped: %s", result.Reason)
	}
}
