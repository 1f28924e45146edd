package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"a11y-agent/internal/application/port/output"

	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("llm api key is not set")

type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	A11y    A11yConfig    `yaml:"a11y"`
	LLM     LLMConfig     `yaml:"llm"`
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	Agent   AgentConfig   `yaml:"agent"`
}

type BrowserConfig struct {
	Headless   bool          `yaml:"headless"`
	NoSandbox  bool          `yaml:"no_sandbox"`
	SlowMotion time.Duration `yaml:"slow_motion"`
	Timeout    time.Duration `yaml:"timeout"`
	Stealth    bool          `yaml:"stealth"`
	DevTools   bool          `yaml:"devtools"`
	Bin        string        `yaml:"bin"`
}

type A11yConfig struct {
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	KeyDelayMin       time.Duration `yaml:"key_delay_min"`
	KeyDelayMax       time.Duration `yaml:"key_delay_max"`
	NewTabWait        time.Duration `yaml:"new_tab_wait"`
	NetworkIdleCap    time.Duration `yaml:"network_idle_cap"`
	NetworkIdleWindow time.Duration `yaml:"network_idle_window"`
}

type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	Stream      bool    `yaml:"stream"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	Console bool   `yaml:"console"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	TaskTimeout   time.Duration `yaml:"task_timeout"`
}

func Default() Config {
	return Config{
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  30 * time.Second,
			Stealth:  true,
		},
		A11y: A11yConfig{
			ActionTimeout:     10 * time.Second,
			KeyDelayMin:       25 * time.Millisecond,
			KeyDelayMax:       75 * time.Millisecond,
			NewTabWait:        1500 * time.Millisecond,
			NetworkIdleCap:    5 * time.Second,
			NetworkIdleWindow: 500 * time.Millisecond,
		},
		LLM: LLMConfig{
			Model:       "openai/gpt-4o-mini",
			BaseURL:     "https://openrouter.ai/api/v1",
			Temperature: 0.1,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "log",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Agent: AgentConfig{
			MaxIterations: 30,
			TaskTimeout:   30 * time.Minute,
		},
	}
}

// envSource is the part of the env service the loader reads.
type envSource interface {
	output.ConfigPort
	GetDuration(key string, defaultValue time.Duration) time.Duration
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then the environment.
func Load(path string, env envSource) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if env != nil {
		applyEnv(&cfg, env)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, env envSource) {
	cfg.LLM.APIKey = env.GetWithDefault("OPENROUTER_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = env.GetWithDefault("OPENROUTER_MODEL_NAME", cfg.LLM.Model)
	cfg.LLM.BaseURL = env.GetWithDefault("OPENROUTER_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Stream = env.GetBool("LLM_STREAM", cfg.LLM.Stream)

	cfg.Browser.Headless = env.GetBool("BROWSER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.Stealth = env.GetBool("BROWSER_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.NoSandbox = env.GetBool("BROWSER_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.Bin = env.GetWithDefault("BROWSER_BIN", cfg.Browser.Bin)
	cfg.Browser.Timeout = env.GetDuration("BROWSER_TIMEOUT", cfg.Browser.Timeout)

	cfg.Log.Level = env.GetWithDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Dir = env.GetWithDefault("LOG_DIR", cfg.Log.Dir)
	cfg.Log.Console = env.GetBool("LOG_CONSOLE", cfg.Log.Console)

	cfg.HTTP.Addr = env.GetWithDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Agent.MaxIterations = env.GetInt("AGENT_MAX_ITERATIONS", cfg.Agent.MaxIterations)
}

// Validate reports settings the LLM-backed commands cannot run without.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.LLM.Model == "" {
		return errors.New("llm model is not set")
	}
	if c.A11y.KeyDelayMax < c.A11y.KeyDelayMin {
		return fmt.Errorf("a11y.key_delay_max (%s) is below key_delay_min (%s)", c.A11y.KeyDelayMax, c.A11y.KeyDelayMin)
	}
	return nil
}
