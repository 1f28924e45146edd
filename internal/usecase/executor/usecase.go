package executor

import (
	"context"
	"fmt"

	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"
)

var _ input.TaskExecutor = (*UseCase)(nil)

const (
	defaultMaxIterations = 30
	maxObservationLen    = 20000
)

type Options struct {
	MaxIterations int
	Temperature   float32
	// Stream uses ChatStream when the client supports it. OnChunk receives
	// content deltas.
	Stream  bool
	OnChunk func(content string)
}

// UseCase runs the tool-calling loop: ask the model, execute the tools it
// calls, feed the observations back until it answers without tools.
type UseCase struct {
	llm          output.LLMPort
	tools        output.ToolRegistry
	logger       output.LoggerPort
	systemPrompt string
	opts         Options
}

func New(
	llm output.LLMPort,
	tools output.ToolRegistry,
	logger output.LoggerPort,
	systemPrompt string,
	opts Options,
) *UseCase {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	return &UseCase{
		llm:          llm,
		tools:        tools,
		logger:       logger,
		systemPrompt: systemPrompt,
		opts:         opts,
	}
}

func (uc *UseCase) Execute(ctx context.Context, description string) (*input.ExecuteResult, error) {
	task := entity.NewTask(description)
	log := uc.logger.WithField("task_id", task.ID)
	task.Status = entity.TaskStatusRunning
	log.Info("Task started", "task", description)

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: uc.systemPrompt},
		{Role: entity.RoleUser, Content: description},
	}

	toolDefs := uc.tools.Definitions()

	for iteration := 1; iteration <= uc.opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			task.Status = entity.TaskStatusFailed
			return nil, err
		}
		log.Debug("Starting iteration", "iteration", iteration)

		resp, err := uc.chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: uc.opts.Temperature,
		})
		if err != nil {
			task.Status = entity.TaskStatusFailed
			return nil, fmt.Errorf("llm request failed: %w", err)
		}

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			task.Status = entity.TaskStatusCompleted
			log.Info("Task completed", "iterations", iteration)
			return &input.ExecuteResult{
				FinalAnswer: resp.Message.Content,
				Iterations:  iteration,
			}, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			observation := uc.executeTool(ctx, log, tc)

			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    observation,
			})
		}
	}

	task.Status = entity.TaskStatusFailed
	return nil, fmt.Errorf("max iterations (%d) exceeded", uc.opts.MaxIterations)
}

func (uc *UseCase) chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	streamer, ok := uc.llm.(output.StreamingLLMPort)
	if !uc.opts.Stream || !ok {
		return uc.llm.Chat(ctx, req)
	}
	return streamer.ChatStream(ctx, req, func(chunk output.StreamChunk) {
		if chunk.Content != "" && uc.opts.OnChunk != nil {
			uc.opts.OnChunk(chunk.Content)
		}
	})
}

func (uc *UseCase) executeTool(ctx context.Context, log output.LoggerPort, tc entity.ToolCall) string {
	tool, ok := uc.tools.Get(entity.ToolName(tc.Name))
	if !ok {
		log.Warn("Unknown tool called", "name", tc.Name)
		return fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
	}

	log.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)

	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		log.Error("Tool execution failed", "name", tc.Name, "error", err)
		return "Error: " + err.Error()
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}

	log.Debug("Tool completed", "name", tc.Name, "resultLen", len(result))
	return result
}
