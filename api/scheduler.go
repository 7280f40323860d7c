/*
scheduler.go - Automated voucher expiry scheduler

PURPOSE:
  Periodically moves issued vouchers whose validity window has closed to
  "expired", so expired codes can no longer be redeemed and reports show
  the right status.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one sweep immediately on start
  - Each sweep is a single conditional UPDATE in the store; running two
    sweeps back to back is harmless
  - Expiry events are published by issuance.Lifecycle and picked up by the
    audit recorder and metrics

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewExpiryScheduler(handler.Lifecycle, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - issuance/lifecycle.go: Expire
  - cmd/server/main.go: "expire" one-shot command
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Expirer runs one expiry sweep.
type Expirer interface {
	Expire(ctx context.Context) (int, error)
}

// ExpiryScheduler handles automated voucher expiry.
type ExpiryScheduler struct {
	Expirer       Expirer
	CheckInterval time.Duration
	Enabled       bool
	Logger        zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryScheduler creates a new scheduler.
func NewExpiryScheduler(expirer Expirer, logger zerolog.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		Expirer:       expirer,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (s *ExpiryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info().Msg("expiry scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info().Dur("interval", s.CheckInterval).Msg("expiry scheduler started")
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info().Msg("expiry scheduler stopped")
	}
}

func (s *ExpiryScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

func (s *ExpiryScheduler) sweep() {
	if _, err := s.RunNow(context.Background()); err != nil {
		s.Logger.Error().Err(err).Msg("expiry sweep failed")
	}
}

// RunNow triggers an immediate sweep and returns how many vouchers expired.
func (s *ExpiryScheduler) RunNow(ctx context.Context) (int, error) {
	n, err := s.Expirer.Expire(ctx)
	if err != nil {
		return 0, err
	}
	s.Logger.Debug().Int("expired", n).Msg("expiry sweep completed")
	return n, nil
}
