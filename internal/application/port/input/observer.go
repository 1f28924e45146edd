package input

import (
	"context"

	"a11y-agent/internal/domain/entity"
)

type ObserveRequest struct {
	Instruction string
	// FocusXPath scopes extraction to a subtree, possibly inside iframes.
	FocusXPath   string
	ReturnAction bool
}

type Observer interface {
	Observe(ctx context.Context, req ObserveRequest) ([]entity.ObservedElement, error)
}

type ActRequest struct {
	Instruction string
	FocusXPath  string
}

type ActResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Element *entity.ObservedElement `json:"element,omitempty"`
}

type Actor interface {
	Act(ctx context.Context, req ActRequest) (*ActResult, error)
}
