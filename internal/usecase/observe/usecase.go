package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
	"a11y-agent/internal/infrastructure/prompts"
)

var _ input.Observer = (*UseCase)(nil)

var (
	ErrEmptyInstruction = errors.New("instruction is empty")
	ErrUnknownElement   = errors.New("element id is not in the tree")
)

type Options struct {
	Temperature float32
	// Methods are offered to the model when actions are requested.
	Methods []string
}

// UseCase asks the model which elements of the stitched accessibility
// tree match an instruction and turns its answer into XPath selectors.
type UseCase struct {
	llm    output.LLMPort
	page   output.AccessibilityPort
	logger output.LoggerPort
	opts   Options
}

func New(llm output.LLMPort, page output.AccessibilityPort, logger output.LoggerPort, opts Options) *UseCase {
	return &UseCase{
		llm:    llm,
		page:   page,
		logger: logger.WithField("component", "observe"),
		opts:   opts,
	}
}

type modelElement struct {
	ElementID   string   `json:"elementId"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	Arguments   []string `json:"arguments"`
}

type modelResponse struct {
	Elements []modelElement `json:"elements"`
}

func (uc *UseCase) Observe(ctx context.Context, req input.ObserveRequest) ([]entity.ObservedElement, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, ErrEmptyInstruction
	}

	tree, err := uc.page.CombinedTree(ctx, req.FocusXPath)
	if err != nil {
		return nil, fmt.Errorf("build accessibility tree: %w", err)
	}

	system, user, err := prompts.GenerateObservePrompt(prompts.ObservePromptData{
		Instruction:  req.Instruction,
		Tree:         tree.Tree,
		ReturnAction: req.ReturnAction,
		Methods:      uc.opts.Methods,
	})
	if err != nil {
		return nil, fmt.Errorf("render observe prompt: %w", err)
	}

	resp, err := uc.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: system},
			{Role: entity.RoleUser, Content: user},
		},
		Temperature: uc.opts.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}

	parsed, err := parseModelResponse(resp.Message.Content)
	if err != nil {
		return nil, err
	}

	elements := uc.resolve(tree, parsed.Elements, req.ReturnAction)
	uc.logger.Info("Observe finished",
		"instruction", req.Instruction,
		"candidates", len(parsed.Elements),
		"elements", len(elements))
	return elements, nil
}

// parseModelResponse reads the first JSON object in the reply, ignoring
// prose or code fences around it.
func parseModelResponse(content string) (*modelResponse, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &resp, nil
}

func (uc *UseCase) resolve(tree *entity.CombinedTree, candidates []modelElement, withAction bool) []entity.ObservedElement {
	out := make([]entity.ObservedElement, 0, len(candidates))
	for _, c := range candidates {
		id := entity.EncodedID(strings.Trim(strings.TrimSpace(c.ElementID), "[]"))
		xpath, ok := tree.XPath(id)
		if !ok || xpath == "" {
			uc.logger.Warn("Model returned an id that is not in the tree", "element_id", c.ElementID)
			continue
		}

		el := entity.ObservedElement{
			ElementID:   id,
			Selector:    entity.XPathPrefix + xpath,
			Description: c.Description,
		}
		if n, ok := tree.Nodes[id]; ok {
			el.Role = n.Role
			el.Name = n.Name
		}
		if withAction {
			el.Method = c.Method
			el.Arguments = c.Arguments
		}
		out = append(out, el)
	}
	return out
}

// PerformByID runs a method on an element of a previously returned tree
// without asking the model again.
func (uc *UseCase) PerformByID(ctx context.Context, tree *entity.CombinedTree, id entity.EncodedID, method string, args []string) error {
	if _, _, err := entity.ParseEncodedID(string(id)); err != nil {
		return err
	}
	xpath, ok := tree.XPath(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	return uc.page.PerformAction(ctx, entity.Action{
		Method:    method,
		Arguments: args,
		Selector:  entity.XPathPrefix + xpath,
	})
}
