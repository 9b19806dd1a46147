package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/t77yq/roma-console/internal/client"
	"github.com/t77yq/roma-console/internal/dashboard"
	"github.com/t77yq/roma-console/internal/model"
)

func (c *console) newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"exec", "ex"},
		Short:   "List, inspect, create and delete executions",
	}
	cmd.AddCommand(
		c.newExecutionsListCmd(),
		c.newExecutionsGetCmd(),
		c.newExecutionsStatusCmd(),
		c.newExecutionsMetricsCmd(),
		c.newExecutionsDataCmd(),
		c.newExecutionsCreateCmd(),
		c.newExecutionsDeleteCmd(),
	)
	return cmd
}

func (c *console) newExecutionsListCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions with dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			if limit == 0 {
				limit = c.cfg.Dashboard.PageSize
			}
			page, err := c.client.ListExecutions(ctx, client.ListOptions{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(page)
			}

			fmt.Fprintln(c.out, statsLine(dashboard.Aggregate(page.Executions)))
			fmt.Fprintln(c.out)
			if len(page.Executions) == 0 {
				fmt.Fprintln(c.out, mutedStyle.Sprint("No executions"))
				return nil
			}
			c.printExecutions(page.Executions)
			if page.Total > page.Offset+len(page.Executions) {
				fmt.Fprintln(c.out, mutedStyle.Sprintf("Showing %d-%d of %d",
					page.Offset+1, page.Offset+len(page.Executions), page.Total))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", client.DefaultOffset, "number of executions to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default dashboard.page_size)")
	return cmd
}

func (c *console) newExecutionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			exec, err := c.client.GetExecution(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(exec)
			}
			c.printExecution(exec)
			return nil
		},
	}
}

func (c *console) newExecutionsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show the live status of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			status, err := c.client.GetStatus(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(status)
			}
			c.printStatus(status)
			return nil
		},
	}
}

func (c *console) newExecutionsMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <execution-id>",
		Short: "Show LM usage of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			metrics, err := c.client.GetMetrics(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(metrics)
			}

			fmt.Fprintln(c.out, headerStyle.Sprintf("Metrics for %s", args[0]))
			fmt.Fprintf(c.out, "  LM calls:        %d\n", metrics.TotalLMCalls)
			fmt.Fprintf(c.out, "  Tokens:          %d (%d prompt, %d completion)\n",
				metrics.TotalTokens, metrics.PromptTokens, metrics.CompletionTokens)
			fmt.Fprintf(c.out, "  Cost:            $%.4f\n", metrics.TotalCostUSD)
			fmt.Fprintf(c.out, "  Average latency: %.0f ms\n", metrics.AverageLatencyMS)
			return nil
		},
	}
}

func (c *console) newExecutionsDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data <execution-id>",
		Short: "Dump an execution with its task and LM traces as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			data, err := c.client.GetExecutionData(ctx, args[0])
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}
}

func (c *console) newExecutionsCreateCmd() *cobra.Command {
	var (
		maxDepth  int
		profile   string
		overrides map[string]string
		metadata  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create <goal>",
		Short: "Start a new execution",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			exec, err := c.client.CreateExecution(ctx, model.CreateExecutionRequest{
				Goal:            strings.Join(args, " "),
				MaxDepth:        maxDepth,
				ConfigProfile:   profile,
				ConfigOverrides: parseValues(overrides),
				Metadata:        parseValues(metadata),
			})
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(exec)
			}
			c.printExecution(exec)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", model.DefaultMaxDepth, "maximum decomposition depth")
	cmd.Flags().StringVar(&profile, "profile", "", "configuration profile")
	cmd.Flags().StringToStringVar(&overrides, "set", nil, "configuration override key=value (repeatable)")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "metadata key=value (repeatable)")
	return cmd
}

func (c *console) newExecutionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <execution-id>",
		Short: "Delete an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			return c.client.DeleteExecution(ctx, args[0])
		},
	}
}

// parseValues decodes each value as JSON when possible and keeps it as a string otherwise
func parseValues(in map[string]string) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for key, raw := range in {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out
}
