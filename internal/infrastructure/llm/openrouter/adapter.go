package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
)

var _ output.StreamingLLMPort = (*OpenRouterAdapter)(nil)

var ErrNoChoices = errors.New("no choices in response")

// OpenRouterAdapter talks to any OpenAI-compatible chat endpoint.
type OpenRouterAdapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
	}
}

// loggingTransport logs request sizes, never prompt contents.
type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	var summary struct {
		Model    string            `json:"model"`
		Messages []json.RawMessage `json:"messages"`
		Tools    []json.RawMessage `json:"tools"`
	}
	_ = json.Unmarshal(body, &summary)

	t.logger.Debug("LLM request",
		"url", req.URL.String(),
		"model", summary.Model,
		"messages", len(summary.Messages),
		"tools", len(summary.Tools),
		"bytes", len(body))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("LLM request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}
	t.logger.Debug("LLM response", "status", resp.StatusCode)
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: cfg.Logger},
		}
	}

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &output.ChatResponse{Message: convertResponseMessage(resp.Choices[0].Message)}, nil
}

// ChatStream forwards text deltas to onChunk as they arrive and returns the
// assembled message. The last chunk carries the tool calls and Done.
func (a *OpenRouterAdapter) ChatStream(ctx context.Context, req output.ChatRequest, onChunk func(output.StreamChunk)) (*output.ChatResponse, error) {
	oaiReq := a.buildRequest(req)
	oaiReq.Stream = true

	stream, err := a.client.CreateChatCompletionStream(ctx, oaiReq)
	if err != nil {
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}
	defer stream.Close()

	var acc streamAccumulator
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream recv error: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := acc.add(chunk.Choices[0].Delta); text != "" && onChunk != nil {
			onChunk(output.StreamChunk{Content: text})
		}
	}

	msg := acc.message()
	if a.logger != nil {
		a.logger.Debug("Stream completed",
			"chunks", acc.chunks,
			"text_len", len(msg.Content),
			"reasoning_len", acc.reasoning,
			"tool_calls", len(msg.ToolCalls))
	}
	if onChunk != nil {
		onChunk(output.StreamChunk{ToolCalls: msg.ToolCalls, Done: true})
	}
	return &output.ChatResponse{Message: msg}, nil
}

// streamAccumulator rebuilds one assistant message from stream deltas.
// Tool call fragments are keyed by their index.
type streamAccumulator struct {
	text      strings.Builder
	calls     map[int]*entity.ToolCall
	chunks    int
	reasoning int
}

func (s *streamAccumulator) add(delta openai.ChatCompletionStreamChoiceDelta) string {
	s.chunks++
	s.reasoning += len(delta.ReasoningContent)
	s.text.WriteString(delta.Content)

	for _, tc := range delta.ToolCalls {
		if tc.Index == nil {
			continue
		}
		if s.calls == nil {
			s.calls = make(map[int]*entity.ToolCall)
		}
		call, ok := s.calls[*tc.Index]
		if !ok {
			call = &entity.ToolCall{}
			s.calls[*tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Name = tc.Function.Name
		}
		call.Arguments += tc.Function.Arguments
	}
	return delta.Content
}

func (s *streamAccumulator) message() entity.Message {
	msg := entity.Message{Role: entity.RoleAssistant, Content: s.text.String()}

	indices := make([]int, 0, len(s.calls))
	for idx := range s.calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		msg.ToolCalls = append(msg.ToolCalls, *s.calls[idx])
	}
	return msg
}

func (a *OpenRouterAdapter) buildRequest(req output.ChatRequest) openai.ChatCompletionRequest {
	oaiReq := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = convertTools(req.Tools)
		oaiReq.ToolChoice = "auto"
	}
	if req.JSONMode {
		oaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return oaiReq
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:       tc.ID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	result := entity.Message{
		Role:    entity.MessageRole(msg.Role),
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result
}
