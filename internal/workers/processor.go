package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 10 * time.Minute
)

// SessionSweeper abandons one user's stale sessions
type SessionSweeper interface {
	AbandonStale(ctx context.Context, userID uuid.UUID, idleFor time.Duration) (int, error)
}

// JobProcessor consumes stale-session jobs
type JobProcessor struct {
	sweeper        SessionSweeper
	jobQueue       queue.JobQueue
	defaultIdleFor time.Duration
	logger         *zap.Logger
}

// NewJobProcessor creates a new job processor. jobQueue is used to re-enqueue
// failed jobs with a delay; without it failures are requeued immediately.
func NewJobProcessor(sweeper SessionSweeper, jobQueue queue.JobQueue, defaultIdleFor time.Duration, log *zap.Logger) *JobProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobProcessor{
		sweeper:        sweeper,
		jobQueue:       jobQueue,
		defaultIdleFor: defaultIdleFor,
		logger:         log,
	}
}

// Run processes deliveries until ctx is cancelled or the message channel closes
func (p *JobProcessor) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				p.logger.Info("message_channel_closed")
				return
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				p.logger.Error("job_processing_failed",
					zap.Error(err),
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
				)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		}
	}
}

// ProcessJob handles one delivery and always acks or nacks it
func (p *JobProcessor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack expired job: %w", err)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeAbandonStaleSessions:
		idleFor := job.IdleFor
		if idleFor <= 0 {
			idleFor = p.defaultIdleFor
		}
		count, err := p.sweeper.AbandonStale(ctx, job.UserID, idleFor)
		if err != nil {
			return p.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		p.logger.Debug("stale_session_job_processed",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", logger.SanitizeUserID(job.UserID.String())),
			zap.Int("abandoned", count),
		)
		return nil

	default:
		if err := msg.Nack(false); err != nil {
			p.logger.Warn("failed_to_nack_unknown_job", zap.Error(err))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError retries with backoff while retries remain and dead-letters the job after that
func (p *JobProcessor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, jobErr error) error {
	if errors.Is(jobErr, context.Canceled) {
		if err := msg.Nack(true); err != nil {
			p.logger.Warn("failed_to_requeue_job", zap.Error(err))
		}
		return jobErr
	}

	if !job.CanRetry() {
		p.logger.Warn("job_dead_lettered",
			zap.String("job_id", job.ID.String()),
			zap.Int("retries", job.RetryCount),
		)
		if err := msg.Nack(false); err != nil {
			p.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(err))
		}
		return fmt.Errorf("job failed (max retries): %w", jobErr)
	}

	if p.jobQueue != nil {
		delay := RetryDelay(job.RetryCount)
		err := p.jobQueue.Enqueue(ctx, job.Retry(delay))
		if err == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Warn("failed_to_ack_retried_job", zap.Error(ackErr))
			}
			p.logger.Info("job_retry_scheduled",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", job.RetryCount+1),
				zap.Duration("delay", delay),
			)
			return fmt.Errorf("job failed (will retry): %w", jobErr)
		}
		p.logger.Warn("failed_to_reenqueue_job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	if err := msg.Nack(true); err != nil {
		p.logger.Warn("failed_to_requeue_job", zap.Error(err))
	}
	return fmt.Errorf("job failed (requeued): %w", jobErr)
}

// RetryDelay doubles from 30s per attempt and caps at 10 minutes
func RetryDelay(retryCount int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
