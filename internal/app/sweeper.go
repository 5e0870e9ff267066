package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitrineshop/inventory-api/internal/clock"
	"github.com/vitrineshop/inventory-api/internal/domain"
	"github.com/vitrineshop/inventory-api/internal/metrics"
)

// SweepStore lists sweep candidates in bounded, cursor-paged batches.
type SweepStore interface {
	ListExpired(ctx context.Context, now time.Time, limit int, afterID string) ([]domain.Reservation, error)
}

// Sweeper reclaims stock held by abandoned reservations. It shares nothing
// with request handlers except the storage layer; each reclaim runs in its
// own transaction through the manager's idempotent expiry path, so a race
// against a simultaneous release or commit cannot double-release.
type Sweeper struct {
	store     SweepStore
	reclaimer Reclaimer
	clock     clock.Clock
	logger    *logrus.Logger
	interval  time.Duration
	batchSize int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

const (
	defaultSweepInterval  = 30 * time.Second
	defaultSweepBatchSize = 100
)

func NewSweeper(store SweepStore, reclaimer Reclaimer, clk clock.Clock, logger *logrus.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:     store,
		reclaimer: reclaimer,
		clock:     clk,
		logger:    logger,
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatchSize,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Start launches the background loop. The first pass runs immediately.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.run()

	s.logger.WithField("interval", s.interval).Info("expiry sweeper started")
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	s.logger.Info("expiry sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.Sweep(context.Background())
	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep runs one full pass and returns how many reservations it reclaimed.
// A failure on one reservation is logged and skipped; the candidate stays
// in the sweep set and is retried on the next pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	now := s.clock.Now()
	reclaimed := 0
	afterID := ""

	for {
		batch, err := s.store.ListExpired(ctx, now, s.batchSize, afterID)
		if err != nil {
			s.logger.WithError(err).Error("sweep: list expired reservations")
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, res := range batch {
			ok, err := s.reclaimer.ReclaimExpired(ctx, res.ID)
			if err != nil {
				s.logger.WithError(err).WithField("reservation_id", res.ID).
					Warn("sweep: reclaim failed, will retry next pass")
				continue
			}
			if ok {
				reclaimed++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if reclaimed > 0 {
		s.logger.WithField("reclaimed", reclaimed).Info("sweep pass complete")
	}
	return reclaimed
}
