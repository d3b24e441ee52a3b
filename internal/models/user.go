package models

import (
	"time"

	"github.com/google/uuid"
)

// SkillLevel represents a cook's self-reported skill level
type SkillLevel string

const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelExpert       SkillLevel = "expert"
)

// Valid reports whether the skill level is one of the known values
func (s SkillLevel) Valid() bool {
	switch s {
	case SkillLevelBeginner, SkillLevelIntermediate, SkillLevelExpert:
		return true
	default:
		return false
	}
}

// VoiceSettings holds text-to-speech playback preferences
type VoiceSettings struct {
	Speed float64 `json:"speed"`
	Voice string  `json:"voice"`
}

// Preferences is stored as JSONB on the user row
type Preferences struct {
	DietaryRestrictions []string      `json:"dietaryRestrictions"`
	CuisinePreferences  []string      `json:"cuisinePreferences"`
	CookingGoals        []string      `json:"cookingGoals"`
	VoiceSettings       VoiceSettings `json:"voiceSettings"`
}

// DefaultPreferences returns the preferences assigned at signup
func DefaultPreferences() Preferences {
	return Preferences{
		DietaryRestrictions: []string{},
		CuisinePreferences:  []string{},
		CookingGoals:        []string{},
		VoiceSettings: VoiceSettings{
			Speed: 1.0,
			Voice: "default",
		},
	}
}

// User represents a user in the system
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	SkillLevel   SkillLevel  `json:"skillLevel"`
	Preferences  Preferences `json:"preferences"`
	IsActive     bool        `json:"isActive"`
	LastLoginAt  *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
