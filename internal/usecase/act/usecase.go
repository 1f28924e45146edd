package act

import (
	"context"
	"fmt"

	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
)

var _ input.Actor = (*UseCase)(nil)

type UseCase struct {
	observer input.Observer
	page     output.AccessibilityPort
	logger   output.LoggerPort
}

func New(observer input.Observer, page output.AccessibilityPort, logger output.LoggerPort) *UseCase {
	return &UseCase{
		observer: observer,
		page:     page,
		logger:   logger.WithField("component", "act"),
	}
}

// Act observes with actions requested and performs the first candidate.
// Failing to find or run an action is reported in the result, not as an
// error.
func (uc *UseCase) Act(ctx context.Context, req input.ActRequest) (*input.ActResult, error) {
	elements, err := uc.observer.Observe(ctx, input.ObserveRequest{
		Instruction:  req.Instruction,
		FocusXPath:   req.FocusXPath,
		ReturnAction: true,
	})
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return &input.ActResult{Message: "no element matches the instruction"}, nil
	}

	el := elements[0]
	if el.Method == "" {
		return &input.ActResult{Message: "model did not choose a method", Element: &el}, nil
	}

	err = uc.page.PerformAction(ctx, entity.Action{
		Method:    el.Method,
		Arguments: el.Arguments,
		Selector:  el.Selector,
	})
	if err != nil {
		uc.logger.Warn("Action failed", "method", el.Method, "selector", el.Selector, "error", err)
		return &input.ActResult{Message: err.Error(), Element: &el}, nil
	}

	uc.logger.Info("Action performed", "method", el.Method, "selector", el.Selector)
	return &input.ActResult{
		Success: true,
		Message: fmt.Sprintf("%s performed on %s", el.Method, describe(el)),
		Element: &el,
	}, nil
}

func describe(el entity.ObservedElement) string {
	switch {
	case el.Name != "":
		return fmt.Sprintf("%s %q", el.Role, el.Name)
	case el.Description != "":
		return el.Description
	}
	return string(el.ElementID)
}
