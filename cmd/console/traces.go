package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *console) newTracesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traces",
		Short: "Show task and LM traces of an execution",
	}
	cmd.AddCommand(c.newTaskTracesCmd(), c.newLMTracesCmd())
	return cmd
}

func (c *console) newTaskTracesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <execution-id>",
		Short: "Show the task decomposition tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			traces, err := c.client.ListTaskTraces(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(traces)
			}

			for _, trace := range traces {
				indent := strings.Repeat("  ", trace.Depth)
				fmt.Fprintf(c.out, "%s%s %s %s\n",
					indent,
					bullet,
					mutedStyle.Sprintf("[%s]", trace.Status),
					truncate(trace.Goal, 80))
				if trace.Error != "" {
					fmt.Fprintf(c.out, "%s  %s\n", indent, errorStyle.Sprint(trace.Error))
				}
			}
			return nil
		},
	}
}

func (c *console) newLMTracesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lm <execution-id>",
		Short: "Show language-model calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			traces, err := c.client.ListLMTraces(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(traces)
			}

			for _, trace := range traces {
				fmt.Fprintf(c.out, "%s  %-20s %-24s %6d tokens  %7.0f ms  $%.4f\n",
					formatTime(trace.CreatedAt),
					trace.ModuleName,
					trace.Model,
					trace.PromptTokens+trace.CompletionTokens,
					trace.LatencyMS,
					trace.CostUSD)
			}
			return nil
		},
	}
}
