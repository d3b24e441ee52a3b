package coach

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/realtime"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// sideEffect mutates the session after a successful interaction
type sideEffect func(in *interactionRun, sc *models.SessionContext, step *int)

// Policy describes how one interaction type behaves
type Policy struct {
	Type           models.InteractionType
	Event          realtime.EventType
	AdaptationMade bool
	UsesHistory    bool
	input          *template.Template
	instruction    *template.Template
	effect         sideEffect
}

type promptDef struct {
	Event          string `yaml:"event"`
	AdaptationMade bool   `yaml:"adaptation_made"`
	UsesHistory    bool   `yaml:"uses_history"`
	Input          string `yaml:"input"`
	Instruction    string `yaml:"instruction"`
}

// promptData is the template input for both the stored user input and the model instruction
type promptData struct {
	Question    string
	Issue       string
	Ingredient  string
	Step        int
	StepData    models.StepData
	RecipeName  string
	SkillLevel  models.SkillLevel
	PercentDone int
}

var templateFuncs = template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}

var sideEffects = map[models.InteractionType]sideEffect{
	models.InteractionQuestionAnswer: func(in *interactionRun, sc *models.SessionContext, _ *int) {
		sc.QuestionsAsked = append(sc.QuestionsAsked, in.data.Question)
		sc.LastInteraction = &in.at
	},
	models.InteractionStepGuidance: func(in *interactionRun, sc *models.SessionContext, step *int) {
		*step = in.data.Step
		sc.LastInteraction = &in.at
	},
	models.InteractionTipSuggestion: func(in *interactionRun, sc *models.SessionContext, _ *int) {
		sc.TipsProvided = append(sc.TipsProvided, in.response)
	},
}

// LoadPolicies parses the embedded prompt table
func LoadPolicies() (map[models.InteractionType]*Policy, error) {
	return parsePolicies(promptsYAML)
}

func parsePolicies(data []byte) (map[models.InteractionType]*Policy, error) {
	var defs map[string]promptDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	policies := make(map[models.InteractionType]*Policy, len(defs))
	for name, def := range defs {
		t := models.InteractionType(name)
		if !t.Valid() {
			return nil, fmt.Errorf("prompts: unknown interaction type %q", name)
		}
		if def.Event == "" || def.Input == "" || def.Instruction == "" {
			return nil, fmt.Errorf("prompts: %s needs event, input and instruction", name)
		}

		input, err := template.New(name + ".input").Funcs(templateFuncs).Option("missingkey=error").Parse(def.Input)
		if err != nil {
			return nil, fmt.Errorf("prompts: %s input: %w", name, err)
		}
		instruction, err := template.New(name + ".instruction").Funcs(templateFuncs).Option("missingkey=error").Parse(def.Instruction)
		if err != nil {
			return nil, fmt.Errorf("prompts: %s instruction: %w", name, err)
		}

		policies[t] = &Policy{
			Type:           t,
			Event:          realtime.EventType(def.Event),
			AdaptationMade: def.AdaptationMade,
			UsesHistory:    def.UsesHistory,
			input:          input,
			instruction:    instruction,
			effect:         sideEffects[t],
		}
	}
	return policies, nil
}

func render(t *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

// interactionRun carries one pipeline execution through the side effect
type interactionRun struct {
	data     promptData
	response string
	at       time.Time
}
