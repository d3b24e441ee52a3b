// Package progress derives per-recipe mastery and cooking statistics from completed sessions.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultStatsPeriodDays is the stats window when the caller gives none
	DefaultStatsPeriodDays = 30
	// MaxStatsPeriodDays bounds the stats window
	MaxStatsPeriodDays = 365

	recentActivityLimit = 10
	recentSessionsLimit = 5

	recipeMasterThreshold = 10
	speedCookSeconds      = 1800
	consistentCookDays    = 7

	beginnerMasteryBelow = 30
	expertMasteryFrom    = 70
)

// Aggregator maintains the progress ledger and computes views over it
type Aggregator struct {
	progress database.ProgressRepositoryInterface
	sessions database.SessionRepositoryInterface
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates a new progress aggregator
func NewAggregator(progress database.ProgressRepositoryInterface, sessions database.SessionRepositoryInterface, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		progress: progress,
		sessions: sessions,
		logger:   log,
		now:      time.Now,
	}
}

// RecordCompletion folds a completed session into the (user, recipe) ledger, creating it on first completion.
// A zero or missing duration leaves the timing fields untouched.
func (a *Aggregator) RecordCompletion(ctx context.Context, userID uuid.UUID, recipeID, recipeName string, duration *int, feedback *models.SessionFeedback) (*models.UserProgress, error) {
	if duration != nil && *duration <= 0 {
		duration = nil
	}

	p, err := a.progress.GetByUserAndRecipe(ctx, userID, recipeID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		p = models.NewUserProgress(userID, recipeID, recipeName)
		a.apply(p, duration, feedback)
		err = a.progress.Create(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("failed to create progress: %w", err)
		}
		// Another completion created the row first; fold into it instead.
		p, err = a.progress.GetByUserAndRecipe(ctx, userID, recipeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load progress: %w", err)
		}
		fallthrough
	case err == nil:
		a.apply(p, duration, feedback)
		if err := a.progress.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to update progress: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	a.logger.Info("progress_recorded",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("recipe_id", logger.SanitizeString(recipeID, 100)),
		zap.Int("completion_count", p.CompletionCount),
		zap.Int("mastery_level", p.MasteryLevel),
	)
	return p, nil
}

func (a *Aggregator) apply(p *models.UserProgress, duration *int, feedback *models.SessionFeedback) {
	p.ApplyCompletion(duration, feedback.RatingOrZero(), a.now().UTC())
	if feedback != nil && feedback.Difficulty != nil {
		d := *feedback.Difficulty
		p.DifficultyRating = &d
	}
}

// SkillBreakdown buckets recipes by mastery
type SkillBreakdown struct {
	Beginner     int `json:"beginner"`
	Intermediate int `json:"intermediate"`
	Expert       int `json:"expert"`
}

// OverviewTotals is the headline block of the progress overview
type OverviewTotals struct {
	TotalRecipes        int            `json:"totalRecipes"`
	TotalSessions       int            `json:"totalSessions"`
	AverageMastery      int            `json:"averageMastery"`
	SkillLevelBreakdown SkillBreakdown `json:"skillLevelBreakdown"`
}

// RecentActivity is one recently cooked recipe
type RecentActivity struct {
	RecipeID        string     `json:"recipeId"`
	RecipeName      string     `json:"recipeName"`
	MasteryLevel    int        `json:"masteryLevel"`
	LastCooked      *time.Time `json:"lastCooked,omitempty"`
	CompletionCount int        `json:"completionCount"`
}

// Overview is the progress overview for one user
type Overview struct {
	Overview       OverviewTotals         `json:"overview"`
	RecentActivity []RecentActivity       `json:"recentActivity"`
	AllProgress    []*models.UserProgress `json:"allProgress"`
}

// GetOverview summarizes every recipe the user has completed
func (a *Aggregator) GetOverview(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	records, err := a.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	completed, err := a.sessions.CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	out := &Overview{
		Overview: OverviewTotals{
			TotalRecipes:  len(records),
			TotalSessions: completed,
		},
		RecentActivity: []RecentActivity{},
		AllProgress:    records,
	}
	if out.AllProgress == nil {
		out.AllProgress = []*models.UserProgress{}
	}

	sum := 0
	for i, p := range records {
		sum += p.MasteryLevel
		switch {
		case p.MasteryLevel < beginnerMasteryBelow:
			out.Overview.SkillLevelBreakdown.Beginner++
		case p.MasteryLevel < expertMasteryFrom:
			out.Overview.SkillLevelBreakdown.Intermediate++
		default:
			out.Overview.SkillLevelBreakdown.Expert++
		}
		if i < recentActivityLimit {
			out.RecentActivity = append(out.RecentActivity, RecentActivity{
				RecipeID:        p.RecipeID,
				RecipeName:      p.RecipeName,
				MasteryLevel:    p.MasteryLevel,
				LastCooked:      p.LastCooked,
				CompletionCount: p.CompletionCount,
			})
		}
	}
	if len(records) > 0 {
		out.Overview.AverageMastery = int(math.Round(float64(sum) / float64(len(records))))
	}

	return out, nil
}

// ProgressionPoint is one sample of the mastery time series
type ProgressionPoint struct {
	Date         time.Time `json:"date"`
	Recipe       string    `json:"recipe"`
	MasteryLevel int       `json:"masteryLevel"`
}

// Stats are the cooking statistics over a period
type Stats struct {
	TotalSessions      int                `json:"totalSessions"`
	CompletedSessions  int                `json:"completedSessions"`
	TotalCookingTime   int                `json:"totalCookingTime"`
	AverageSessionTime int                `json:"averageSessionTime"`
	FavoriteRecipes    map[string]int     `json:"favoriteRecipes"`
	DailyActivity      map[string]int     `json:"dailyActivity"`
	SkillProgression   []ProgressionPoint `json:"skillProgression"`
}

// StatsReport wraps Stats with the period it covers
type StatsReport struct {
	Period string `json:"period"`
	Stats  Stats  `json:"stats"`
}

// NormalizePeriod applies the default and bounds to a stats window in days
func NormalizePeriod(days int) int {
	if days < 1 {
		return DefaultStatsPeriodDays
	}
	if days > MaxStatsPeriodDays {
		return MaxStatsPeriodDays
	}
	return days
}

// GetStats computes statistics over the sessions started in the last periodDays
func (a *Aggregator) GetStats(ctx context.Context, userID uuid.UUID, periodDays int) (*StatsReport, error) {
	periodDays = NormalizePeriod(periodDays)
	since := a.now().UTC().AddDate(0, 0, -periodDays)

	sessions, err := a.sessions.ListStartedSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	records, err := a.progress.ListUpdatedSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	stats := Stats{
		TotalSessions:    len(sessions),
		FavoriteRecipes:  map[string]int{},
		DailyActivity:    map[string]int{},
		SkillProgression: make([]ProgressionPoint, 0, len(records)),
	}

	timed, timedTotal := 0, 0
	for _, s := range sessions {
		if s.Duration != nil {
			stats.TotalCookingTime += *s.Duration
		}
		if s.Status == models.SessionStatusCompleted {
			stats.CompletedSessions++
			if s.Duration != nil && *s.Duration > 0 {
				timed++
				timedTotal += *s.Duration
			}
		}
		if s.RecipeName != "" {
			stats.FavoriteRecipes[s.RecipeName]++
		}
		stats.DailyActivity[s.StartedAt.UTC().Format(time.DateOnly)]++
	}
	if timed > 0 {
		stats.AverageSessionTime = int(math.Round(float64(timedTotal) / float64(timed)))
	}

	for _, p := range records {
		stats.SkillProgression = append(stats.SkillProgression, ProgressionPoint{
			Date:         p.UpdatedAt,
			Recipe:       p.RecipeName,
			MasteryLevel: p.MasteryLevel,
		})
	}

	return &StatsReport{Period: fmt.Sprintf("%d days", periodDays), Stats: stats}, nil
}

// RecipeProgress is the ledger for one recipe plus its latest sessions
type RecipeProgress struct {
	Progress       *models.UserProgress     `json:"progress"`
	RecentSessions []*models.CookingSession `json:"recentSessions,omitempty"`
	Message        string                   `json:"message,omitempty"`
}

// GetRecipeProgress returns the user's ledger for one recipe. A recipe never completed is not an error.
func (a *Aggregator) GetRecipeProgress(ctx context.Context, userID uuid.UUID, recipeID string) (*RecipeProgress, error) {
	p, err := a.progress.GetByUserAndRecipe(ctx, userID, recipeID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &RecipeProgress{Message: "No progress found for this recipe"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	recent, err := a.sessions.ListRecentByRecipe(ctx, userID, recipeID, recentSessionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}
	if recent == nil {
		recent = []*models.CookingSession{}
	}
	return &RecipeProgress{Progress: p, RecentSessions: recent}, nil
}

// Achievement is one badge and whether the user has earned it
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt"`
}

// AchievementSummary counts unlocked badges
type AchievementSummary struct {
	Unlocked   int `json:"unlocked"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Achievements is the full badge list for a user
type Achievements struct {
	Achievements []Achievement      `json:"achievements"`
	Summary      AchievementSummary `json:"summary"`
}

// GetAchievements evaluates every badge for the user
func (a *Aggregator) GetAchievements(ctx context.Context, user *models.User) (*Achievements, error) {
	records, err := a.progress.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	completed, err := a.sessions.ListCompleted(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sessions: %w", err)
	}

	list := []Achievement{
		firstRecipe(completed),
		recipeMaster(records),
		speedCook(completed),
		perfectionist(records),
		consistentCook(completed),
		skillUpgrade(user),
	}

	unlocked := 0
	for _, ach := range list {
		if ach.Unlocked {
			unlocked++
		}
	}

	return &Achievements{
		Achievements: list,
		Summary: AchievementSummary{
			Unlocked:   unlocked,
			Total:      len(list),
			Percentage: int(math.Round(float64(unlocked) / float64(len(list)) * 100)),
		},
	}, nil
}

func firstRecipe(completed []*models.CookingSession) Achievement {
	ach := Achievement{ID: "first_recipe", Name: "First Recipe", Description: "Complete your first recipe", Icon: "🍳"}
	if len(completed) > 0 {
		ach.Unlocked = true
		ach.UnlockedAt = completed[0].CompletedAt
	}
	return ach
}

func recipeMaster(records []*models.UserProgress) Achievement {
	ach := Achievement{ID: "recipe_master", Name: "Recipe Master", Description: "Complete 10 different recipes", Icon: "👨‍🍳"}
	if len(records) < recipeMasterThreshold {
		return ach
	}
	created := make([]time.Time, 0, len(records))
	for _, p := range records {
		created = append(created, p.CreatedAt)
	}
	sort.Slice(created, func(i, j int) bool { return created[i].Before(created[j]) })
	at := created[recipeMasterThreshold-1]
	ach.Unlocked = true
	ach.UnlockedAt = &at
	return ach
}

func speedCook(completed []*models.CookingSession) Achievement {
	ach := Achievement{ID: "speed_cook", Name: "Speed Cook", Description: "Complete a recipe in under 30 minutes", Icon: "⚡"}
	for _, s := range completed {
		if s.Duration != nil && *s.Duration > 0 && *s.Duration < speedCookSeconds {
			ach.Unlocked = true
			ach.UnlockedAt = s.CompletedAt
			break
		}
	}
	return ach
}

func perfectionist(records []*models.UserProgress) Achievement {
	ach := Achievement{ID: "perfectionist", Name: "Perfectionist", Description: "Achieve 100% mastery on any recipe", Icon: "⭐"}
	for _, p := range records {
		if p.MasteryLevel >= models.MaxMasteryLevel {
			at := p.UpdatedAt
			ach.Unlocked = true
			ach.UnlockedAt = &at
			break
		}
	}
	return ach
}

// consistentCook unlocks on the first run of consecutive UTC days that each have a completed session.
// completed must be ordered by completion time.
func consistentCook(completed []*models.CookingSession) Achievement {
	ach := Achievement{ID: "consistent_cook", Name: "Consistent Cook", Description: "Cook for 7 days in a row", Icon: "📅"}

	var prevDay time.Time
	streak := 0
	for _, s := range completed {
		if s.CompletedAt == nil {
			continue
		}
		day := s.CompletedAt.UTC().Truncate(24 * time.Hour)
		switch {
		case streak > 0 && day.Equal(prevDay):
			continue
		case streak > 0 && day.Equal(prevDay.AddDate(0, 0, 1)):
			streak++
		default:
			streak = 1
		}
		prevDay = day
		if streak >= consistentCookDays {
			ach.Unlocked = true
			ach.UnlockedAt = s.CompletedAt
			break
		}
	}
	return ach
}

func skillUpgrade(user *models.User) Achievement {
	ach := Achievement{ID: "skill_upgrade", Name: "Skill Upgrade", Description: "Upgrade your skill level", Icon: "📈"}
	if user.SkillLevel != "" && user.SkillLevel != models.SkillLevelBeginner {
		at := user.UpdatedAt
		ach.Unlocked = true
		ach.UnlockedAt = &at
	}
	return ach
}
