package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler fires the accrual job at the first instant of every month,
// UTC. It is designed to run as one goroutine alongside the HTTP server
// and stop cleanly when its context is cancelled.
type Scheduler struct {
	accrual *AccrualService
	logger  *zap.Logger
}

func NewScheduler(accrual *AccrualService, logger *zap.Logger) *Scheduler {
	return &Scheduler{accrual: accrual, logger: logger}
}

// Run blocks until ctx is cancelled, firing the accrual job at each month
// boundary. The job itself is idempotent within a month, so a missed or
// doubled tick is harmless.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := time.Now().UTC()
		next := firstOfNextMonthUTC(now)
		s.logger.Info("accrual scheduler sleeping", zap.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("accrual scheduler stopped")
			return nil
		case <-timer.C:
		}

		if _, err := s.accrual.RunMonthlyInterestJob(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("scheduled accrual run failed", zap.Error(err))
		}
	}
}
