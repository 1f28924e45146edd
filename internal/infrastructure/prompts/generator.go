package prompts

import (
	"bytes"
	"sort"
	"strings"
	"text/template"

	"a11y-agent/internal/domain/entity"
)

type ObservePromptData struct {
	Instruction  string
	Tree         string
	ReturnAction bool
	Methods      []string
}

type SystemPromptData struct {
	Tools []entity.ToolDefinition
}

var funcs = template.FuncMap{"join": strings.Join}

// GenerateObservePrompt renders the system and user messages of an
// observe request.
func GenerateObservePrompt(data ObservePromptData) (system, user string, err error) {
	methods := append([]string(nil), data.Methods...)
	sort.Strings(methods)
	data.Methods = methods

	if system, err = render("observe", ObservePrompt, data); err != nil {
		return "", "", err
	}
	if user, err = render("observe_user", ObserveUserPrompt, data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

func GenerateSystemPrompt(baseTemplate string, tools []entity.ToolDefinition) (string, error) {
	sorted := append([]entity.ToolDefinition(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return render("system", baseTemplate, SystemPromptData{Tools: sorted})
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
