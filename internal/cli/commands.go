package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"a11y-agent/internal/adapter/httpapi"
	"a11y-agent/internal/application/port/input"
	"a11y-agent/internal/di"

	"github.com/spf13/cobra"
)

var (
	flagFrame string
	flagFocus string
	flagAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run the agent on a task",
	Long: `Run the tool-calling agent until it answers. The task is read from stdin
when no argument is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.TrimSpace(strings.Join(args, " "))
		if task == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "Enter a task for the agent:")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read task: %w", err)
			}
			task = strings.TrimSpace(line)
		}
		if task == "" {
			return fmt.Errorf("task is empty")
		}

		out := cmd.OutOrStdout()
		c, err := newContainer(cmd.Context(), "run", true, di.Options{
			OnChunk: func(s string) { fmt.Fprint(out, s) },
		})
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), c.Config.Agent.TaskTimeout)
		defer cancel()

		result, err := c.TaskExecutor.Execute(ctx, task)
		if err != nil {
			c.Logger.Error("Task failed", "error", err)
			return err
		}

		if c.Config.LLM.Stream {
			fmt.Fprintln(out)
			return nil
		}
		fmt.Fprintln(out, result.FinalAnswer)
		return nil
	},
}

var observeCmd = &cobra.Command{
	Use:   "observe <url> <instruction>",
	Short: "List elements matching an instruction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd.Context(), "observe", true, di.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Browser.Navigate(cmd.Context(), args[0]); err != nil {
			return err
		}
		elements, err := c.Observer.Observe(cmd.Context(), input.ObserveRequest{
			Instruction: args[1],
			FocusXPath:  flagFrame,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), elements)
	},
}

var actCmd = &cobra.Command{
	Use:   "act <url> <instruction>",
	Short: "Perform one plain-language action",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd.Context(), "act", true, di.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Browser.Navigate(cmd.Context(), args[0]); err != nil {
			return err
		}
		res, err := c.Actor.Act(cmd.Context(), input.ActRequest{
			Instruction: args[1],
			FocusXPath:  flagFrame,
		})
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("action failed: %s", res.Message)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <url>",
	Short: "Print the accessibility tree of a page and its iframes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd.Context(), "tree", false, di.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Browser.Navigate(cmd.Context(), args[0]); err != nil {
			return err
		}
		tree, err := c.Browser.CombinedTree(cmd.Context(), flagFocus)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tree.Tree)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContainer(cmd.Context(), "serve", true, di.Options{})
		if err != nil {
			return err
		}
		defer c.Close()

		addr := c.Config.HTTP.Addr
		if flagAddr != "" {
			addr = flagAddr
		}
		return httpapi.NewServer(addr, c.HTTPHandler(), c.Logger).Run(cmd.Context())
	},
}

func init() {
	observeCmd.Flags().StringVar(&flagFrame, "frame", "", "Absolute XPath limiting the search, may cross iframes")
	actCmd.Flags().StringVar(&flagFrame, "frame", "", "Absolute XPath limiting the search, may cross iframes")
	treeCmd.Flags().StringVar(&flagFocus, "focus", "", "Absolute XPath of the subtree to print")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides http.addr)")
}
