package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeAbandonStaleSessions marks one user's long-idle cooking sessions abandoned
	JobTypeAbandonStaleSessions JobType = "abandon_stale_sessions"

	// DefaultMaxRetries is how many times a failed job is retried before it is dead-lettered
	DefaultMaxRetries = 3
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID     `json:"id"`
	Type       JobType       `json:"type"`
	UserID     uuid.UUID     `json:"user_id"`
	IdleFor    time.Duration `json:"idle_for"`
	NotBefore  *time.Time    `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time    `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt  time.Time     `json:"created_at"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`
}

// NewJob creates a new job for a user
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewAbandonStaleSessionsJob creates a sweep job that expires once the next sweep is due
func NewAbandonStaleSessionsJob(userID uuid.UUID, idleFor, validFor time.Duration) *Job {
	job := NewJob(JobTypeAbandonStaleSessions, userID)
	job.IdleFor = idleFor
	if validFor > 0 {
		notAfter := job.CreatedAt.Add(validFor)
		job.NotAfter = &notAfter
	}
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired()
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// Retry returns a copy of the job scheduled to run again after delay
func (j *Job) Retry(delay time.Duration) *Job {
	next := *j
	next.RetryCount++
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	return &next
}
