package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxMasteryLevel caps UserProgress.MasteryLevel
const MaxMasteryLevel = 100

// ProgressAdaptations records the changes a user tends to make to a recipe
type ProgressAdaptations struct {
	Ingredients []string `json:"ingredients"`
	Techniques  []string `json:"techniques"`
	Timing      []string `json:"timing"`
}

// UserProgress is the per (user, recipe) mastery ledger
type UserProgress struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"userId"`
	RecipeID         string              `json:"recipeId"`
	RecipeName       string              `json:"recipeName"`
	CompletionCount  int                 `json:"completionCount"`
	AverageTime      *int                `json:"averageTime,omitempty"`
	BestTime         *int                `json:"bestTime,omitempty"`
	LastCooked       *time.Time          `json:"lastCooked,omitempty"`
	MasteryLevel     int                 `json:"masteryLevel"`
	SkillsLearned    []string            `json:"skillsLearned"`
	DifficultyRating *int                `json:"difficultyRating,omitempty"`
	PersonalNotes    string              `json:"personalNotes"`
	Adaptations      ProgressAdaptations `json:"adaptations"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// NewUserProgress returns an empty ledger for a recipe the user has not completed yet
func NewUserProgress(userID uuid.UUID, recipeID, recipeName string) *UserProgress {
	return &UserProgress{
		ID:            uuid.New(),
		UserID:        userID,
		RecipeID:      recipeID,
		RecipeName:    recipeName,
		SkillsLearned: []string{},
		Adaptations: ProgressAdaptations{
			Ingredients: []string{},
			Techniques:  []string{},
			Timing:      []string{},
		},
	}
}

// ApplyCompletion folds one completed session into the ledger.
// The order of the steps matters: the running average uses the new count.
func (p *UserProgress) ApplyCompletion(duration *int, rating int, now time.Time) {
	p.CompletionCount++
	p.LastCooked = &now

	if duration != nil {
		d := *duration
		if p.AverageTime == nil {
			avg := d
			p.AverageTime = &avg
		} else {
			n := float64(p.CompletionCount)
			avg := int(math.Round((float64(*p.AverageTime)*(n-1) + float64(d)) / n))
			p.AverageTime = &avg
		}
		if p.BestTime == nil || d < *p.BestTime {
			best := d
			p.BestTime = &best
		}
	}

	p.MasteryLevel = p.CompletionCount*10 + rating*5
	if p.MasteryLevel > MaxMasteryLevel {
		p.MasteryLevel = MaxMasteryLevel
	}
}
