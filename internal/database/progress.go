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
	"github.com/lib/pq"
)

const progressColumns = `id, user_id, recipe_id, recipe_name, completion_count, average_time, best_time,
	last_cooked, mastery_level, skills_learned, difficulty_rating, personal_notes, adaptations, created_at, updated_at`

// ProgressRepository handles user progress database operations
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// GetByUserAndRecipe returns the ledger row for one (user, recipe) pair
func (r *ProgressRepository) GetByUserAndRecipe(ctx context.Context, userID uuid.UUID, recipeID string) (*models.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND recipe_id = $2`
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, recipeID))
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

// Create inserts a new ledger row
func (r *ProgressRepository) Create(ctx context.Context, p *models.UserProgress) error {
	query := `
		INSERT INTO user_progress (id, user_id, recipe_id, recipe_name, completion_count, average_time, best_time,
			last_cooked, mastery_level, skills_learned, difficulty_rating, personal_notes, adaptations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	adaptationsJSON, err := json.Marshal(p.Adaptations)
	if err != nil {
		return fmt.Errorf("failed to marshal adaptations: %w", err)
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		p.ID,
		p.UserID,
		p.RecipeID,
		p.RecipeName,
		p.CompletionCount,
		nullInt(p.AverageTime),
		nullInt(p.BestTime),
		nullTime(p.LastCooked),
		p.MasteryLevel,
		pq.Array(p.SkillsLearned),
		nullInt(p.DifficultyRating),
		p.PersonalNotes,
		adaptationsJSON,
		now,
		now,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return apperr.Conflict("progress for this recipe already exists")
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}

	return nil
}

// Update writes the completion metrics of an existing ledger row
func (r *ProgressRepository) Update(ctx context.Context, p *models.UserProgress) error {
	query := `
		UPDATE user_progress
		SET recipe_name = $2, completion_count = $3, average_time = $4, best_time = $5, last_cooked = $6,
			mastery_level = $7, skills_learned = $8, difficulty_rating = $9, personal_notes = $10,
			adaptations = $11, updated_at = $12
		WHERE id = $1
		RETURNING updated_at
	`

	adaptationsJSON, err := json.Marshal(p.Adaptations)
	if err != nil {
		return fmt.Errorf("failed to marshal adaptations: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query,
		p.ID,
		p.RecipeName,
		p.CompletionCount,
		nullInt(p.AverageTime),
		nullInt(p.BestTime),
		nullTime(p.LastCooked),
		p.MasteryLevel,
		pq.Array(p.SkillsLearned),
		nullInt(p.DifficultyRating),
		p.PersonalNotes,
		adaptationsJSON,
		time.Now(),
	).Scan(&p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("progress")
	}
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return nil
}

// ListByUser returns every ledger row of the user, most recently cooked first
func (r *ProgressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress
		WHERE user_id = $1
		ORDER BY last_cooked DESC NULLS LAST`
	return r.query(ctx, query, userID)
}

// ListUpdatedSince returns ledger rows touched since a point in time, oldest update first
func (r *ProgressRepository) ListUpdatedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress
		WHERE user_id = $1 AND updated_at >= $2
		ORDER BY updated_at ASC`
	return r.query(ctx, query, userID, since)
}

func (r *ProgressRepository) query(ctx context.Context, query string, args ...any) ([]*models.UserProgress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	list := []*models.UserProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}
	return list, nil
}

func scanProgress(row rowScanner) (*models.UserProgress, error) {
	p := &models.UserProgress{}
	var averageTime, bestTime, difficulty sql.NullInt64
	var lastCooked sql.NullTime
	var skills pq.StringArray
	var adaptationsJSON []byte

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.RecipeID,
		&p.RecipeName,
		&p.CompletionCount,
		&averageTime,
		&bestTime,
		&lastCooked,
		&p.MasteryLevel,
		&skills,
		&difficulty,
		&p.PersonalNotes,
		&adaptationsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("progress")
	}
	if err != nil {
		return nil, err
	}

	p.AverageTime = intPtr(averageTime)
	p.BestTime = intPtr(bestTime)
	p.DifficultyRating = intPtr(difficulty)
	if lastCooked.Valid {
		p.LastCooked = &lastCooked.Time
	}
	p.SkillsLearned = []string(skills)
	if p.SkillsLearned == nil {
		p.SkillsLearned = []string{}
	}
	if len(adaptationsJSON) > 0 {
		if err := json.Unmarshal(adaptationsJSON, &p.Adaptations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal adaptations: %w", err)
		}
	}

	return p, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
