package ai

import (
	"context"

	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
)

// Role is the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to a provider
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for one completion
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// Completion is the text a provider generated
type Completion struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Usage    Usage  `json:"usage"`
}

// Provider is a single text-generation backend
type Provider interface {
	// Name identifies the provider in logs, errors and responses
	Name() string
	// Complete sends the messages and returns the first choice
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// HistoryTurn is one earlier exchange replayed to the model
type HistoryTurn struct {
	UserInput     string `json:"userInput"`
	CoachResponse string `json:"coachResponse"`
}

// CoachingContext describes where the user is in a session when asking the coach
type CoachingContext struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	RecipeID        string
	RecipeName      string
	CurrentStep     int
	TotalSteps      int
	SkillLevel      models.SkillLevel
	InteractionType models.InteractionType
	History         []HistoryTurn
}

// Gateway turns a coaching instruction into a model response
type Gateway interface {
	GenerateCoachingResponse(ctx context.Context, instruction string, cc CoachingContext) (*Completion, error)
}
