// Package workers runs the background jobs that keep cooking sessions tidy.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdleUserLister finds users who own sessions nobody has touched since cutoff
type IdleUserLister interface {
	ListIdleUserIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// SweepScheduler enqueues one stale-session job per user on every tick
type SweepScheduler struct {
	jobQueue queue.JobQueue
	sessions IdleUserLister
	idleFor  time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(jobQueue queue.JobQueue, sessions IdleUserLister, idleFor, interval time.Duration, log *zap.Logger) *SweepScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SweepScheduler{
		jobQueue: jobQueue,
		sessions: sessions,
		idleFor:  idleFor,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

// Start sweeps immediately and then on every interval until ctx is cancelled
func (s *SweepScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScheduleSweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("stale_session_sweep_failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScheduleSweep enqueues a job for every user with idle sessions and returns how many were queued
func (s *SweepScheduler) ScheduleSweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleFor)
	userIDs, err := s.sessions.ListIdleUserIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list idle users: %w", err)
	}

	queued := 0
	for _, userID := range userIDs {
		// A job still queued when the next sweep starts is superseded by that sweep.
		job := queue.NewAbandonStaleSessionsJob(userID, s.idleFor, s.interval)
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			s.logger.Warn("failed_to_schedule_stale_session_job",
				zap.String("user_id", logger.SanitizeUserID(userID.String())),
				zap.Error(err),
			)
			continue
		}
		queued++
	}

	s.logger.Info("scheduled_stale_session_jobs",
		zap.Int("user_count", len(userIDs)),
		zap.Int("queued", queued),
		zap.Time("cutoff", cutoff),
	)
	return queued, nil
}
