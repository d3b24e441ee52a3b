package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/cookmate/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobProcessor_ProcessJob(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name         string
		job          func() *queue.Job
		sweepErr     error
		enqueueErr   error
		withQueue    bool
		expectError  bool
		wantSwept    bool
		wantAcked    bool
		wantRequeued bool
		wantDLQ      bool
		wantRetry    bool
	}{
		{
			name:      "abandons stale sessions",
			job:       func() *queue.Job { return queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour) },
			withQueue: true,
			wantSwept: true,
			wantAcked: true,
		},
		{
			name: "expired job is dropped",
			job: func() *queue.Job {
				job := queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, 0)
				job.NotAfter = &past
				return job
			},
			wantAcked: true,
		},
		{
			name:        "unknown type is dead-lettered",
			job:         func() *queue.Job { return queue.NewJob("mystery", uuid.New()) },
			expectError: true,
			wantDLQ:     true,
		},
		{
			name:        "failure is retried with delay",
			job:         func() *queue.Job { return queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour) },
			sweepErr:    errors.New("db down"),
			withQueue:   true,
			expectError: true,
			wantSwept:   true,
			wantAcked:   true,
			wantRetry:   true,
		},
		{
			name:         "failure without a queue is requeued",
			job:          func() *queue.Job { return queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour) },
			sweepErr:     errors.New("db down"),
			expectError:  true,
			wantSwept:    true,
			wantRequeued: true,
		},
		{
			name:         "failed re-enqueue falls back to requeue",
			job:          func() *queue.Job { return queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour) },
			sweepErr:     errors.New("db down"),
			enqueueErr:   errors.New("broker down"),
			withQueue:    true,
			expectError:  true,
			wantSwept:    true,
			wantRequeued: true,
		},
		{
			name: "retries exhausted goes to the DLQ",
			job: func() *queue.Job {
				job := queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour)
				job.RetryCount = job.MaxRetries
				return job
			},
			sweepErr:    errors.New("db down"),
			withQueue:   true,
			expectError: true,
			wantSwept:   true,
			wantDLQ:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := tt.job()
			swept := false
			sweeper := sweeperFunc(func(_ context.Context, userID uuid.UUID, idleFor time.Duration) (int, error) {
				swept = true
				if userID != job.UserID {
					t.Errorf("Expected user %s, got %s", job.UserID, userID)
				}
				if idleFor != time.Hour {
					t.Errorf("Expected idle window 1h, got %v", idleFor)
				}
				return 1, tt.sweepErr
			})

			var q *mockJobQueue
			var jq queue.JobQueue
			if tt.withQueue {
				q = &mockJobQueue{}
				if tt.enqueueErr != nil {
					q.enqueueFunc = func(context.Context, *queue.Job) error { return tt.enqueueErr }
				}
				jq = q
			}

			p := NewJobProcessor(sweeper, jq, 6*time.Hour, nil)
			msg := &mockMessage{job: job}
			err := p.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.expectError {
				t.Fatalf("Expected error=%v, got %v", tt.expectError, err)
			}
			if swept != tt.wantSwept {
				t.Errorf("Expected swept=%v, got %v", tt.wantSwept, swept)
			}
			if msg.acked != tt.wantAcked {
				t.Errorf("Expected acked=%v, got %v", tt.wantAcked, msg.acked)
			}
			if tt.wantRequeued && !(msg.nacked && msg.requeued) {
				t.Error("Expected message to be requeued")
			}
			if tt.wantDLQ && !(msg.nacked && !msg.requeued) {
				t.Error("Expected message to be dead-lettered")
			}
			if tt.wantRetry {
				jobs := q.jobs()
				if len(jobs) != 1 {
					t.Fatalf("Expected 1 retry job, got %d", len(jobs))
				}
				if jobs[0].RetryCount != 1 || jobs[0].NotBefore == nil {
					t.Errorf("Expected delayed retry with count 1, got %+v", jobs[0])
				}
			}
		})
	}
}

func TestJobProcessor_DefaultIdleWindow(t *testing.T) {
	t.Parallel()

	var got time.Duration
	sweeper := sweeperFunc(func(_ context.Context, _ uuid.UUID, idleFor time.Duration) (int, error) {
		got = idleFor
		return 0, nil
	})

	p := NewJobProcessor(sweeper, nil, 6*time.Hour, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypeAbandonStaleSessions, uuid.New())}
	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != 6*time.Hour {
		t.Errorf("Expected default idle window 6h, got %v", got)
	}
}

func TestJobProcessor_CancelledContextRequeues(t *testing.T) {
	t.Parallel()

	sweeper := sweeperFunc(func(ctx context.Context, _ uuid.UUID, _ time.Duration) (int, error) {
		return 0, context.Canceled
	})
	q := &mockJobQueue{}
	p := NewJobProcessor(sweeper, q, time.Hour, nil)
	msg := &mockMessage{job: queue.NewAbandonStaleSessionsJob(uuid.New(), time.Hour, time.Hour)}

	if err := p.ProcessJob(context.Background(), msg); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if !msg.requeued || len(q.jobs()) != 0 {
		t.Error("Expected a plain requeue without a retry job")
	}
}

func TestJobProcessor_Run(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	p := NewJobProcessor(sweeperFunc(func(context.Context, uuid.UUID, time.Duration) (int, error) {
		return 0, nil
	}), nil, time.Hour, zap.New(core))

	msgs := make(chan *queue.Message)
	errs := make(chan error, 1)
	errs <- errors.New("delivery channel closed")

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), msgs, errs)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for logs.FilterMessage("queue_error").Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("Expected queue_error to be logged")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(msgs)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return when messages close")
	}
	if logs.FilterMessage("message_channel_closed").Len() != 1 {
		t.Error("Expected message_channel_closed to be logged")
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{5, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.retries); got != tt.want {
			t.Errorf("RetryDelay(%d): expected %v, got %v", tt.retries, tt.want, got)
		}
	}
}
