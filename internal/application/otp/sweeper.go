package otp

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes used and expired codes. Correctness never depends
// on it; it only bounds table growth.
type Sweeper struct {
	codes    CodeStore
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewSweeper(codes CodeStore, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{codes: codes, interval: interval, log: log, now: time.Now}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Warn("code sweeper disabled", zap.Duration("interval", s.interval))
		return
	}
	s.log.Info("started code sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Error("code sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce purges everything stale as of now and returns the number removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.codes.PurgeStale(ctx, s.now().UTC())
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Debug("purged stale codes", zap.Int64("count", n))
	}
	return n, nil
}
