package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/cookmate/internal/queue"
	"github.com/google/uuid"
)

type mockJobQueue struct {
	mu          sync.Mutex
	enqueued    []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

func (m *mockJobQueue) jobs() []*queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.Job(nil), m.enqueued...)
}

var _ queue.JobQueue = (*mockJobQueue)(nil)

type mockMessage struct {
	job      *queue.Job
	acked    bool
	nacked   bool
	requeued bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeued = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

var _ queue.MessageInterface = (*mockMessage)(nil)

type idleListerFunc func(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

func (f idleListerFunc) ListIdleUserIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return f(ctx, cutoff)
}

type sweeperFunc func(ctx context.Context, userID uuid.UUID, idleFor time.Duration) (int, error)

func (f sweeperFunc) AbandonStale(ctx context.Context, userID uuid.UUID, idleFor time.Duration) (int, error) {
	return f(ctx, userID, idleFor)
}
