package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &DB{DB: sqlDB}, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

var sessionRowColumns = []string{
	"id", "user_id", "recipe_id", "recipe_name", "current_step", "total_steps", "status",
	"started_at", "completed_at", "duration", "feedback", "context", "created_at", "updated_at",
}

func TestSessionRepository_GetByID(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	id := uuid.New()
	userID := uuid.New()
	started := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	completed := started.Add(45 * time.Minute)

	rows := sqlmock.NewRows(sessionRowColumns).AddRow(
		id.String(), userID.String(), "r-42", "Shakshuka", 6, 6, "completed",
		started, completed, int64(2700),
		[]byte(`{"rating":4,"comments":"great"}`),
		[]byte(`{"skillLevel":"intermediate","pace":"normal","questionsAsked":["how hot?"]}`),
		started, completed,
	)
	mock.ExpectQuery("FROM cooking_sessions WHERE id").
		WithArgs(id.String()).
		WillReturnRows(rows)

	s, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if s.ID != id || s.UserID != userID {
		t.Errorf("Expected ids %s/%s, got %s/%s", id, userID, s.ID, s.UserID)
	}
	if s.Status != models.SessionStatusCompleted {
		t.Errorf("Expected status completed, got %s", s.Status)
	}
	if s.Duration == nil || *s.Duration != 2700 {
		t.Errorf("Expected duration 2700, got %v", s.Duration)
	}
	if s.Feedback == nil || s.Feedback.RatingOrZero() != 4 {
		t.Errorf("Expected feedback rating 4, got %+v", s.Feedback)
	}
	if len(s.Context.QuestionsAsked) != 1 || s.Context.QuestionsAsked[0] != "how hot?" {
		t.Errorf("Expected one question in context, got %v", s.Context.QuestionsAsked)
	}
	if s.Context.TipsProvided == nil {
		t.Error("Expected TipsProvided to be normalized to an empty list")
	}
	expectationsMet(t, mock)
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery("FROM cooking_sessions WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSessionRepository_ListHistory(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	userID := uuid.New()
	started := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(23))
	mock.ExpectQuery("ORDER BY started_at DESC").
		WithArgs(userID.String(), 10, 20).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow(uuid.New().String(), userID.String(), "r-1", "Soup", 0, 4, "abandoned",
				started, nil, nil, nil, []byte(`{}`), started, started).
			AddRow(uuid.New().String(), userID.String(), "r-2", "Bread", 2, 9, "active",
				started, nil, nil, nil, []byte(`{}`), started, started))

	sessions, total, err := repo.ListHistory(context.Background(), userID, 10, 20)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 23 {
		t.Errorf("Expected total 23, got %d", total)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Feedback != nil || sessions[0].Duration != nil {
		t.Errorf("Expected nil feedback and duration for unfinished session, got %+v", sessions[0])
	}
	expectationsMet(t, mock)
}

func TestSessionRepository_Update_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery("UPDATE cooking_sessions").WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &models.CookingSession{ID: uuid.New(), Status: models.SessionStatusPaused})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := repo.Create(context.Background(), &models.User{
		ID:          uuid.New(),
		Email:       "cook@example.com",
		Name:        "Cook",
		SkillLevel:  models.SkillLevelBeginner,
		Preferences: models.DefaultPreferences(),
		IsActive:    true,
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUserRepository_Deactivate_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestInteractionRepository_ListRecent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db)

	sessionID := uuid.New()
	ts := time.Date(2024, 3, 1, 18, 5, 0, 0, time.UTC)
	columns := []string{"id", "session_id", "timestamp", "user_input", "coach_response", "interaction_type",
		"context", "response_time", "user_satisfaction", "created_at", "updated_at"}

	mock.ExpectQuery("ORDER BY timestamp DESC").
		WithArgs(sessionID.String(), 5).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), sessionID.String(), ts, "How do I know it's done?", "Look for bubbles.",
				"question_answer", []byte(`{"currentStep":2,"adaptationMade":false}`), int64(300), int64(4), ts, ts).
			AddRow(uuid.New().String(), sessionID.String(), ts.Add(-time.Minute), "Tip requested", "Salt early.",
				"tip_suggestion", []byte(`{"currentStep":1,"adaptationMade":true}`), nil, nil, ts, ts))

	list, err := repo.ListRecent(context.Background(), sessionID, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 interactions, got %d", len(list))
	}
	if list[0].ResponseTime == nil || *list[0].ResponseTime != 300 {
		t.Errorf("Expected response time 300, got %v", list[0].ResponseTime)
	}
	if list[0].Context.CurrentStep != 2 {
		t.Errorf("Expected current step 2, got %d", list[0].Context.CurrentStep)
	}
	if list[1].UserSatisfaction != nil {
		t.Errorf("Expected nil satisfaction, got %v", *list[1].UserSatisfaction)
	}
	if !list[1].Context.AdaptationMade {
		t.Error("Expected adaptationMade to be true for tip")
	}
	expectationsMet(t, mock)
}

func TestInteractionRepository_GetByIDForSession_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewInteractionRepository(db)

	mock.ExpectQuery("FROM coaching_interactions WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForSession(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestProgressRepository_GetByUserAndRecipe(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewProgressRepository(db)

	userID := uuid.New()
	cooked := time.Date(2024, 3, 2, 19, 0, 0, 0, time.UTC)
	columns := []string{"id", "user_id", "recipe_id", "recipe_name", "completion_count", "average_time", "best_time",
		"last_cooked", "mastery_level", "skills_learned", "difficulty_rating", "personal_notes", "adaptations",
		"created_at", "updated_at"}

	mock.ExpectQuery("FROM user_progress WHERE user_id").
		WithArgs(userID.String(), "r-42").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			uuid.New().String(), userID.String(), "r-42", "Shakshuka", 3, int64(150), int64(100),
			cooked, 50, []byte(`{sear,"knife work"}`), nil, "",
			[]byte(`{"ingredients":["less salt"],"techniques":[],"timing":[]}`), cooked, cooked,
		))

	p, err := repo.GetByUserAndRecipe(context.Background(), userID, "r-42")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.CompletionCount != 3 || p.MasteryLevel != 50 {
		t.Errorf("Expected count 3 mastery 50, got %d/%d", p.CompletionCount, p.MasteryLevel)
	}
	if p.AverageTime == nil || *p.AverageTime != 150 || p.BestTime == nil || *p.BestTime != 100 {
		t.Errorf("Expected average 150 best 100, got %v/%v", p.AverageTime, p.BestTime)
	}
	if len(p.SkillsLearned) != 2 || p.SkillsLearned[1] != "knife work" {
		t.Errorf("Expected two skills, got %v", p.SkillsLearned)
	}
	if p.DifficultyRating != nil {
		t.Errorf("Expected nil difficulty, got %v", *p.DifficultyRating)
	}
	if len(p.Adaptations.Ingredients) != 1 {
		t.Errorf("Expected one ingredient adaptation, got %v", p.Adaptations.Ingredients)
	}
	expectationsMet(t, mock)
}

func TestProgressRepository_GetByUserAndRecipe_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewProgressRepository(db)

	mock.ExpectQuery("FROM user_progress WHERE user_id").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUserAndRecipe(context.Background(), uuid.New(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRatelimitConfigRepository(t *testing.T) {
	t.Parallel()

	t.Run("missing scope returns nil", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		repo := NewRatelimitConfigRepository(db)

		mock.ExpectQuery("FROM ratelimit_config WHERE config_key").
			WithArgs(models.RatelimitScopeCoach).
			WillReturnError(sql.ErrNoRows)

		c, err := repo.Get(context.Background(), models.RatelimitScopeCoach)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if c != nil {
			t.Errorf("Expected nil config, got %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("set defaults blank key to default scope", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		repo := NewRatelimitConfigRepository(db)

		mock.ExpectExec("INSERT INTO ratelimit_config").
			WithArgs(models.RatelimitScopeDefault, "100-M", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.Set(context.Background(), &models.RatelimitConfig{Rate: " 100-M "}); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("set rejects empty rate", func(t *testing.T) {
		t.Parallel()
		db, _ := newMockDB(t)
		repo := NewRatelimitConfigRepository(db)

		if err := repo.Set(context.Background(), &models.RatelimitConfig{ConfigKey: "auth"}); err == nil {
			t.Error("Expected error for empty rate")
		}
	})
}
