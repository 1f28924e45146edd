package prompts

import (
	_ "embed"
)

//go:embed system.txt
var SystemPrompt string

//go:embed observe.txt
var ObservePrompt string

//go:embed observe_user.txt
var ObserveUserPrompt string
