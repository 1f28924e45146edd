package di

import (
	"context"
	"fmt"
	"net/http"

	"a11y-agent/internal/adapter/httpapi"
	"a11y-agent/internal/adapter/tool"
	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/application/port/output"
	"a11y-agent/internal/application/service"
	"a11y-agent/internal/config"
	"a11y-agent/internal/infrastructure/browser/a11y"
	"a11y-agent/internal/infrastructure/browser/rod"
	"a11y-agent/internal/infrastructure/content"
	"a11y-agent/internal/infrastructure/llm/openrouter"
	"a11y-agent/internal/infrastructure/logger"
	"a11y-agent/internal/infrastructure/prompts"
	"a11y-agent/internal/usecase/act"
	"a11y-agent/internal/usecase/executor"
	"a11y-agent/internal/usecase/observe"
)

type Container struct {
	Config       config.Config
	Logger       output.LoggerPort
	Browser      *rod.BrowserAdapter
	LLM          output.LLMPort
	Extractor    output.ContentExtractorPort
	Tools        output.ToolRegistry
	Observer     *observe.UseCase
	Actor        input.Actor
	TaskExecutor input.TaskExecutor
}

type Options struct {
	// LogName names the log file.
	LogName string
	// OnChunk receives streamed answer text when streaming is enabled.
	OnChunk func(content string)
}

// NewContainer launches the browser and wires the use cases. Without an
// API key only the browser side is available and LLM-backed fields are nil.
func NewContainer(ctx context.Context, cfg config.Config, opts Options) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		Name:    opts.LogName,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	browser, err := rod.NewBrowserAdapter(ctx, browserConfig(cfg), log)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	c := &Container{
		Config:    cfg,
		Logger:    log,
		Browser:   browser,
		Extractor: content.NewExtractor(log, 0),
	}

	if cfg.LLM.APIKey == "" {
		log.Warn("No LLM API key configured, observe and act are disabled")
		return c, nil
	}

	llmCfg := openrouter.DefaultConfig(cfg.LLM.APIKey, cfg.LLM.Model)
	if cfg.LLM.BaseURL != "" {
		llmCfg.BaseURL = cfg.LLM.BaseURL
	}
	llmCfg.Logger = log
	c.LLM = openrouter.NewOpenRouterAdapter(llmCfg)

	c.Observer = observe.New(c.LLM, browser, log, observe.Options{
		Temperature: cfg.LLM.Temperature,
		Methods:     a11y.SupportedMethods(),
	})
	c.Actor = act.New(c.Observer, browser, log)

	registry := service.NewToolRegistry()
	registerBrowserTools(registry, c, cfg.Log.Dir)
	c.Tools = registry

	systemPrompt, err := prompts.GenerateSystemPrompt(prompts.SystemPrompt, registry.Definitions())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	c.TaskExecutor = executor.New(c.LLM, registry, log, systemPrompt, executor.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		Temperature:   cfg.LLM.Temperature,
		Stream:        cfg.LLM.Stream,
		OnChunk:       opts.OnChunk,
	})

	return c, nil
}

func browserConfig(cfg config.Config) rod.BrowserConfig {
	bc := rod.DefaultConfig()
	bc.Headless = cfg.Browser.Headless
	bc.NoSandbox = cfg.Browser.NoSandbox
	bc.SlowMotion = cfg.Browser.SlowMotion
	bc.Timeout = cfg.Browser.Timeout
	bc.Stealth = cfg.Browser.Stealth
	bc.DevTools = cfg.Browser.DevTools
	bc.Bin = cfg.Browser.Bin
	bc.A11y = a11y.Config{
		ActionTimeout:     cfg.A11y.ActionTimeout,
		KeyDelayMin:       cfg.A11y.KeyDelayMin,
		KeyDelayMax:       cfg.A11y.KeyDelayMax,
		NewTabWait:        cfg.A11y.NewTabWait,
		NetworkIdleCap:    cfg.A11y.NetworkIdleCap,
		NetworkIdleWindow: cfg.A11y.NetworkIdleWindow,
	}
	return bc
}

func registerBrowserTools(registry *service.ToolRegistryImpl, c *Container, screenshotDir string) {
	cache := &tool.TreeCache{}
	log := c.Logger

	registry.Register(tool.NewNavigateTool(c.Browser, cache, log))
	registry.Register(tool.NewObserveTool(c.Observer, log))
	registry.Register(tool.NewActTool(c.Actor, cache, log))
	registry.Register(tool.NewPerformTool(c.Observer, c.Browser, cache, log))
	registry.Register(tool.NewTreeTool(c.Browser, cache, log))
	registry.Register(tool.NewExtractTool(c.Browser, c.Extractor, log))
	registry.Register(tool.NewScrollTool(c.Browser, cache, log))
	registry.Register(tool.NewScreenshotTool(c.Browser, screenshotDir, log))
}

// HTTPHandler serves the JSON API. It requires the LLM side to be wired.
func (c *Container) HTTPHandler() http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Browser:   c.Browser,
		Page:      c.Browser,
		Observer:  c.Observer,
		Actor:     c.Actor,
		Performer: c.Observer,
	}, c.Logger).Router(c.Config.Log.Level == "debug")
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}
