package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *console) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			health, err := c.client.GetHealth(ctx)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(health)
			}

			fmt.Fprintf(c.out, "Backend:           %s\n", c.cfg.API.BaseURL)
			fmt.Fprintf(c.out, "Status:            %s\n", healthStatusStyle(health.Status).Sprint(health.Status))
			fmt.Fprintf(c.out, "Version:           %s\n", health.Version)
			fmt.Fprintf(c.out, "Uptime:            %s\n", (time.Duration(health.UptimeSeconds) * time.Second).String())
			fmt.Fprintf(c.out, "Active executions: %d\n", health.ActiveExecutions)
			fmt.Fprintf(c.out, "Storage connected: %t\n", health.StorageConnected)
			fmt.Fprintf(c.out, "Cache size:        %d\n", health.CacheSize)
			fmt.Fprintf(c.out, "Reported:          %s\n", formatAgo(health.Timestamp.Time))
			return nil
		},
	}
}
