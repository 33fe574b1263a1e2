package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/metrics"
)

// ExpirySweeper removes refresh-token rows that can no longer be used.
type ExpirySweeper struct {
	store   *RefreshTokenStore
	logger  logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewExpirySweeper returns a sweeper deleting through store. rec may be nil.
func NewExpirySweeper(store *RefreshTokenStore, logger logging.Logger, rec *metrics.Recorder) *ExpirySweeper {
	return &ExpirySweeper{
		store:   store,
		logger:  logger.With("module", "sweeper"),
		metrics: rec,
		now:     time.Now,
	}
}

// SweepUser deletes the user's row with hash and all of the user's expired
// rows. Failures are logged and otherwise ignored.
func (s *ExpirySweeper) SweepUser(ctx context.Context, userID, hash string) {
	n, err := s.store.DeleteMany(ctx, userID, hash, s.now().Unix())
	if err != nil {
		s.logger.Warn(ctx, "sweep user sessions failed", "user_id", userID, "error", err)
		return
	}
	s.metrics.AddSwept(n)
	if n > 0 {
		s.logger.Debug(ctx, "swept user sessions", "user_id", userID, "count", n)
	}
}

// SweepExpired deletes every expired row.
func (s *ExpirySweeper) SweepExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.store.DeleteExpired(ctx, s.now().Unix())
	s.metrics.Observe(metrics.OpSweep, start, err)
	if err != nil {
		return 0, err
	}
	s.metrics.AddSwept(n)
	return n, nil
}

// Run calls SweepExpired every interval until ctx is done. A non-positive
// interval disables the loop.
func (s *ExpirySweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "expiry sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "expiry sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Error(ctx, "sweep expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}
