package models

import (
	"time"

	"github.com/google/uuid"
)

// InteractionType classifies a coaching exchange
type InteractionType string

const (
	InteractionStepGuidance         InteractionType = "step_guidance"
	InteractionQuestionAnswer       InteractionType = "question_answer"
	InteractionTipSuggestion        InteractionType = "tip_suggestion"
	InteractionTroubleshooting      InteractionType = "troubleshooting"
	InteractionEncouragement        InteractionType = "encouragement"
	InteractionTimerManagement      InteractionType = "timer_management"
	InteractionSubstitutionHelp     InteractionType = "substitution_help"
	InteractionTechniqueExplanation InteractionType = "technique_explanation"
)

// AllInteractionTypes lists every storable interaction type
var AllInteractionTypes = []InteractionType{
	InteractionStepGuidance,
	InteractionQuestionAnswer,
	InteractionTipSuggestion,
	InteractionTroubleshooting,
	InteractionEncouragement,
	InteractionTimerManagement,
	InteractionSubstitutionHelp,
	InteractionTechniqueExplanation,
}

// Valid reports whether the type is storable
func (t InteractionType) Valid() bool {
	for _, v := range AllInteractionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// StepData describes the recipe step a user asked guidance for
type StepData struct {
	Instruction   string   `json:"instruction,omitempty" validate:"max=2000"`
	Ingredients   []string `json:"ingredients,omitempty" validate:"max=50,dive,max=200"`
	EstimatedTime string   `json:"estimatedTime,omitempty" validate:"max=100"`
	Difficulty    string   `json:"difficulty,omitempty" validate:"max=50"`
}

// InteractionContext is stored as JSONB on the interaction row
type InteractionContext struct {
	CurrentStep    int            `json:"currentStep"`
	RecipeSection  string         `json:"recipeSection,omitempty"`
	UserEmotion    string         `json:"userEmotion,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Issue          string         `json:"issue,omitempty"`
	Ingredient     string         `json:"ingredient,omitempty"`
	StepData       *StepData      `json:"stepData,omitempty"`
	Client         map[string]any `json:"client,omitempty"`
	AdaptationMade bool           `json:"adaptationMade"`
	UserFeedback   string         `json:"userFeedback,omitempty"`
}

// CoachingInteraction is one AI exchange within a session
type CoachingInteraction struct {
	ID               uuid.UUID          `json:"id"`
	SessionID        uuid.UUID          `json:"sessionId"`
	Timestamp        time.Time          `json:"timestamp"`
	UserInput        string             `json:"userInput"`
	CoachResponse    string             `json:"coachResponse"`
	InteractionType  InteractionType    `json:"interactionType"`
	Context          InteractionContext `json:"context"`
	ResponseTime     *int               `json:"responseTime,omitempty"`
	UserSatisfaction *int               `json:"userSatisfaction,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}
