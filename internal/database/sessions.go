package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, recipe_id, recipe_name, current_step, total_steps, status,
	started_at, completed_at, duration, feedback, context, created_at, updated_at`

// SessionRepository handles cooking session database operations
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.CookingSession) error {
	query := `
		INSERT INTO cooking_sessions (id, user_id, recipe_id, recipe_name, current_step, total_steps, status,
			started_at, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal session context: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		s.ID,
		s.UserID,
		s.RecipeID,
		s.RecipeName,
		s.CurrentStep,
		s.TotalSteps,
		s.Status,
		s.StartedAt,
		contextJSON,
		now,
		now,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID without its interactions
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Update writes every mutable column of the session
func (r *SessionRepository) Update(ctx context.Context, s *models.CookingSession) error {
	query := `
		UPDATE cooking_sessions
		SET current_step = $2, status = $3, completed_at = $4, duration = $5, feedback = $6, context = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal session context: %w", err)
	}

	var feedbackJSON []byte
	if s.Feedback != nil {
		feedbackJSON, err = json.Marshal(s.Feedback)
		if err != nil {
			return fmt.Errorf("failed to marshal session feedback: %w", err)
		}
	}

	err = r.db.QueryRowContext(ctx, query,
		s.ID,
		s.CurrentStep,
		s.Status,
		nullTime(s.CompletedAt),
		nullInt(s.Duration),
		feedbackJSON,
		contextJSON,
		time.Now(),
	).Scan(&s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("session")
	}
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// ListActive returns the user's active and paused sessions, newest first
func (r *SessionRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1 AND status IN ('active', 'paused')
		ORDER BY started_at DESC`
	return r.query(ctx, query, userID)
}

// ListHistory returns one page of the user's sessions, newest first, plus the total count
func (r *SessionRepository) ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.CookingSession, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cooking_sessions WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`
	sessions, err := r.query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ListStartedSince returns sessions started at or after since, oldest first
func (r *SessionRepository) ListStartedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1 AND started_at >= $2
		ORDER BY started_at ASC`
	return r.query(ctx, query, userID, since)
}

// ListRecentByRecipe returns the user's most recent sessions for one recipe
func (r *SessionRepository) ListRecentByRecipe(ctx context.Context, userID uuid.UUID, recipeID string, limit int) ([]*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1 AND recipe_id = $2
		ORDER BY started_at DESC
		LIMIT $3`
	return r.query(ctx, query, userID, recipeID, limit)
}

// ListCompleted returns every completed session of the user, oldest completion first
func (r *SessionRepository) ListCompleted(ctx context.Context, userID uuid.UUID) ([]*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY completed_at ASC`
	return r.query(ctx, query, userID)
}

// CountCompleted counts the user's completed sessions
func (r *SessionRepository) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cooking_sessions WHERE user_id = $1 AND status = 'completed'`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed sessions: %w", err)
	}
	return count, nil
}

// ListIdleUserIDs returns users owning active or paused sessions not written since cutoff
func (r *SessionRepository) ListIdleUserIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM cooking_sessions
		WHERE status IN ('active', 'paused') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle session owners: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating idle session owners: %w", err)
	}
	return ids, nil
}

// ListIdle returns one user's active or paused sessions not written since cutoff
func (r *SessionRepository) ListIdle(ctx context.Context, userID uuid.UUID, cutoff time.Time) ([]*models.CookingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cooking_sessions
		WHERE user_id = $1 AND status IN ('active', 'paused') AND updated_at < $2
		ORDER BY started_at ASC`
	return r.query(ctx, query, userID, cutoff)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]*models.CookingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.CookingSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*models.CookingSession, error) {
	s := &models.CookingSession{}
	var completedAt sql.NullTime
	var duration sql.NullInt64
	var feedbackJSON, contextJSON []byte

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.RecipeID,
		&s.RecipeName,
		&s.CurrentStep,
		&s.TotalSteps,
		&s.Status,
		&s.StartedAt,
		&completedAt,
		&duration,
		&feedbackJSON,
		&contextJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("session")
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	s.Duration = intPtr(duration)
	if len(feedbackJSON) > 0 && string(feedbackJSON) != "null" {
		s.Feedback = &models.SessionFeedback{}
		if err := json.Unmarshal(feedbackJSON, s.Feedback); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session feedback: %w", err)
		}
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session context: %w", err)
		}
	}
	s.Context.Normalize()

	return s, nil
}
