package chat

import (
	"context"
	"time"

	"github.com/hushwire/hushwire/pkg/logger"
)

// Sweeper periodically destroys messages whose scheduled-destroy time has
// elapsed. It races with read-triggered destruction; the store's
// compare-and-set on destroyed_at keeps the transition single-shot.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// Run blocks, sweeping every interval until the context is canceled. One
// sweep runs immediately at start so restarts don't delay overdue
// destructions by a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[sweep] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	destroyed, err := s.service.SweepDue(ctx)
	if err != nil {
		logger.Warnf("[sweep] scan failed: %v", err)
		return
	}
	if destroyed > 0 {
		logger.Infof("[sweep] destroyed %d expired messages", destroyed)
	}
}
