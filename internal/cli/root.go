package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"a11y-agent/internal/config"
	"a11y-agent/internal/di"
	"a11y-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "a11y-agent",
	Short: "a11y-agent - browser automation over the accessibility tree",
	Long: `a11y-agent drives a Chromium tab through its accessibility tree, including
every same-process and out-of-process iframe.

Examples:
  a11y-agent tree https://example.com
  a11y-agent tree https://example.com --focus "/html[1]/body[1]/iframe[1]/html[1]"
  a11y-agent observe https://example.com "the search box"
  a11y-agent act https://example.com "click the login button"
  a11y-agent run "find the price of the first item on https://example.com"
  a11y-agent serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(actCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig, env.NewEnvService())
	if err != nil {
		return config.Config{}, err
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
		cfg.Log.Console = true
	}
	return cfg, nil
}

// newContainer loads the config and wires the app. needLLM rejects a
// config that cannot reach the model before the browser is launched.
func newContainer(ctx context.Context, name string, needLLM bool, opts di.Options) (*di.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if needLLM {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	opts.LogName = name
	return di.NewContainer(ctx, cfg, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
