package prompts

import (
	"strings"
	"testing"

	"a11y-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateObservePrompt(t *testing.T) {
	tests := []struct {
		name         string
		returnAction bool
		contains     []string
		notContains  []string
	}{
		{
			name:         "with actions",
			returnAction: true,
			contains:     []string{"Supported methods: click, fill, press.", `"method": "click"`},
		},
		{
			name:         "elements only",
			returnAction: false,
			notContains:  []string{"Supported methods", `"method"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, user, err := GenerateObservePrompt(ObservePromptData{
				Instruction:  "find the login button",
				Tree:         "[0-1] RootWebArea: Home\n  [0-4] button: Log in",
				ReturnAction: tt.returnAction,
				Methods:      []string{"press", "click", "fill"},
			})
			require.NoError(t, err)

			assert.Contains(t, system, `"elements"`)
			for _, s := range tt.contains {
				assert.Contains(t, system, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, system, s)
			}
			assert.True(t, strings.HasPrefix(user, "instruction: find the login button"))
			assert.Contains(t, user, "[0-4] button: Log in")
		})
	}
}

func TestGenerateObservePrompt_DoesNotMutateMethods(t *testing.T) {
	methods := []string{"press", "click"}

	_, _, err := GenerateObservePrompt(ObservePromptData{Methods: methods, ReturnAction: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"press", "click"}, methods)
}

func TestGenerateSystemPrompt(t *testing.T) {
	tools := []entity.ToolDefinition{
		{Name: "observe", Description: "Find elements"},
		{Name: "act", Description: "Perform one action"},
	}

	prompt, err := GenerateSystemPrompt(SystemPrompt, tools)
	require.NoError(t, err)

	act := strings.Index(prompt, "- act: Perform one action")
	observe := strings.Index(prompt, "- observe: Find elements")
	assert.Positive(t, act)
	assert.Greater(t, observe, act)
}

func TestGenerateSystemPrompt_InvalidTemplate(t *testing.T) {
	_, err := GenerateSystemPrompt(`Test {{.InvalidField}}`, nil)
	assert.Error(t, err)
}
