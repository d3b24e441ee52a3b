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

const interactionColumns = `id, session_id, timestamp, user_input, coach_response, interaction_type,
	context, response_time, user_satisfaction, created_at, updated_at`

// InteractionRepository handles coaching interaction database operations
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Create inserts a new interaction
func (r *InteractionRepository) Create(ctx context.Context, in *models.CoachingInteraction) error {
	query := `
		INSERT INTO coaching_interactions (id, session_id, timestamp, user_input, coach_response, interaction_type,
			context, response_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	contextJSON, err := json.Marshal(in.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction context: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		in.ID,
		in.SessionID,
		in.Timestamp,
		in.UserInput,
		in.CoachResponse,
		in.InteractionType,
		contextJSON,
		nullInt(in.ResponseTime),
		now,
		now,
	).Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create interaction: %w", err)
	}

	return nil
}

// GetByIDForSession retrieves an interaction only when it belongs to the given session
func (r *InteractionRepository) GetByIDForSession(ctx context.Context, id, sessionID uuid.UUID) (*models.CoachingInteraction, error) {
	query := `SELECT ` + interactionColumns + ` FROM coaching_interactions WHERE id = $1 AND session_id = $2`
	in, err := scanInteraction(r.db.QueryRowContext(ctx, query, id, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return in, nil
}

// UpdateFeedback stores the user's satisfaction rating and optional comment
func (r *InteractionRepository) UpdateFeedback(ctx context.Context, in *models.CoachingInteraction) error {
	query := `
		UPDATE coaching_interactions
		SET user_satisfaction = $2, context = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`

	contextJSON, err := json.Marshal(in.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction context: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query, in.ID, nullInt(in.UserSatisfaction), contextJSON, time.Now()).Scan(&in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("interaction")
	}
	if err != nil {
		return fmt.Errorf("failed to update interaction feedback: %w", err)
	}
	return nil
}

// ListBySession returns every interaction of a session in chronological order
func (r *InteractionRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.CoachingInteraction, error) {
	query := `SELECT ` + interactionColumns + ` FROM coaching_interactions
		WHERE session_id = $1
		ORDER BY timestamp ASC`
	return r.query(ctx, query, sessionID)
}

// ListRecent returns the newest interactions of a session, newest first
func (r *InteractionRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.CoachingInteraction, error) {
	query := `SELECT ` + interactionColumns + ` FROM coaching_interactions
		WHERE session_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`
	return r.query(ctx, query, sessionID, limit)
}

// ListSince returns interactions across all of the user's sessions since a point in time
func (r *InteractionRepository) ListSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.CoachingInteraction, error) {
	query := `SELECT ci.id, ci.session_id, ci.timestamp, ci.user_input, ci.coach_response, ci.interaction_type,
			ci.context, ci.response_time, ci.user_satisfaction, ci.created_at, ci.updated_at
		FROM coaching_interactions ci
		JOIN cooking_sessions cs ON cs.id = ci.session_id
		WHERE cs.user_id = $1 AND ci.timestamp >= $2
		ORDER BY ci.timestamp ASC`
	return r.query(ctx, query, userID, since)
}

func (r *InteractionRepository) query(ctx context.Context, query string, args ...any) ([]*models.CoachingInteraction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []*models.CoachingInteraction{}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}
	return interactions, nil
}

func scanInteraction(row rowScanner) (*models.CoachingInteraction, error) {
	in := &models.CoachingInteraction{}
	var contextJSON []byte
	var responseTime, satisfaction sql.NullInt64

	err := row.Scan(
		&in.ID,
		&in.SessionID,
		&in.Timestamp,
		&in.UserInput,
		&in.CoachResponse,
		&in.InteractionType,
		&contextJSON,
		&responseTime,
		&satisfaction,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("interaction")
	}
	if err != nil {
		return nil, err
	}

	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &in.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction context: %w", err)
		}
	}
	in.ResponseTime = intPtr(responseTime)
	in.UserSatisfaction = intPtr(satisfaction)

	return in, nil
}
