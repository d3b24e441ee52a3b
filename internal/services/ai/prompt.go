package ai

import (
	"fmt"
	"strings"

	"github.com/benvon/cookmate/internal/models"
)

// maxHistoryTurns bounds how much earlier conversation is replayed
const maxHistoryTurns = 3

// SystemPrompt returns the coach persona for a skill level and interaction type
func SystemPrompt(skill models.SkillLevel, interactionType models.InteractionType) string {
	if skill == "" {
		skill = models.SkillLevelBeginner
	}
	kind := string(interactionType)
	if kind == "" {
		kind = "general"
	}

	return fmt.Sprintf(`You are CookMate AI Coach, an expert cooking assistant. Your role is to:

1. Guide users through recipes step-by-step with clear, encouraging instructions
2. Adapt your communication style to the user's skill level (%s)
3. Provide helpful tips and troubleshooting advice
4. Answer cooking questions with practical, actionable advice
5. Maintain a supportive, patient, and enthusiastic tone

Guidelines:
- Keep responses concise but informative
- Use simple language for beginners, more technical terms for experts
- Always prioritize food safety
- Encourage users and celebrate their progress
- Provide alternatives when possible
- Ask clarifying questions when needed

Current interaction type: %s`, skill, kind)
}

// ContextualPrompt wraps the instruction with the session state and recent conversation
func ContextualPrompt(instruction string, cc CoachingContext) string {
	recipe := cc.RecipeName
	if recipe == "" {
		recipe = "Unknown"
	}
	skill := cc.SkillLevel
	if skill == "" {
		skill = models.SkillLevelBeginner
	}
	kind := string(cc.InteractionType)
	if kind == "" {
		kind = "general"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context:\n- Recipe: %s\n- Current Step: %d of %d\n- User Skill Level: %s\n- Interaction Type: %s\n\n",
		recipe, cc.CurrentStep, cc.TotalSteps, skill, kind)
	fmt.Fprintf(&b, "User Input: %s\n\nPlease provide a helpful, encouraging response as a cooking coach.", instruction)

	history := cc.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent Conversation:")
		for _, h := range history {
			fmt.Fprintf(&b, "\nUser: %s\nCoach: %s", h.UserInput, h.CoachResponse)
		}
	}

	return b.String()
}

// BuildMessages returns the system and user messages for one coaching call
func BuildMessages(instruction string, cc CoachingContext) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt(cc.SkillLevel, cc.InteractionType)},
		{Role: RoleUser, Content: ContextualPrompt(instruction, cc)},
	}
}
