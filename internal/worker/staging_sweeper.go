package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes staged files older than a given age.
type Sweeper interface {
	Sweep(maxAge time.Duration) (int, error)
}

// StagingSweeper periodically deletes orphaned uploads left in the staging
// directory, for example after a crash mid-ingestion.
type StagingSweeper struct {
	staging      Sweeper
	logger       *zap.Logger
	maxAge       time.Duration
	tickInterval time.Duration
}

// NewStagingSweeper builds the sweeper.
func NewStagingSweeper(staging Sweeper, interval, maxAge time.Duration, logger *zap.Logger) *StagingSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StagingSweeper{
		staging:      staging,
		logger:       logger,
		maxAge:       maxAge,
		tickInterval: interval,
	}
}

// Start sweeps once, then on every tick until ctx is cancelled.
func (w *StagingSweeper) Start(ctx context.Context) {
	if w.tickInterval <= 0 {
		w.logger.Info("staging sweeper disabled")
		return
	}
	w.logger.Info("staging sweeper started",
		zap.Duration("interval", w.tickInterval),
		zap.Duration("max_age", w.maxAge),
	)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("staging sweeper stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *StagingSweeper) sweep() {
	removed, err := w.staging.Sweep(w.maxAge)
	if err != nil {
		w.logger.Warn("staging sweep failed", zap.Error(err))
	}
	if removed > 0 {
		w.logger.Info("removed orphaned uploads", zap.Int("count", removed))
	}
}
