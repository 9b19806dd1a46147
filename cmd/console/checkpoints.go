package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *console) newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"ckpt"},
		Short:   "Inspect and restore execution checkpoints",
	}
	cmd.AddCommand(
		c.newCheckpointsListCmd(),
		c.newCheckpointsGetCmd(),
		c.newCheckpointsRestoreCmd(),
	)
	return cmd
}

func (c *console) newCheckpointsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <execution-id>",
		Short: "List the checkpoints of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			checkpoints, err := c.client.ListCheckpoints(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(checkpoints)
			}

			if len(checkpoints) == 0 {
				fmt.Fprintln(c.out, mutedStyle.Sprint("No checkpoints"))
				return nil
			}
			for _, ckpt := range checkpoints {
				fmt.Fprintf(c.out, "%s %s  %s  %s  %s\n",
					bullet,
					ckpt.CheckpointID,
					formatTime(ckpt.CreatedAt),
					infoStyle.Sprint(ckpt.Trigger),
					ckpt.State)
			}
			return nil
		},
	}
}

func (c *console) newCheckpointsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <checkpoint-id>",
		Short: "Show one checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			ckpt, err := c.client.GetCheckpoint(ctx, args[0])
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(ckpt)
			}

			fmt.Fprintln(c.out, headerStyle.Sprintf("Checkpoint %s", ckpt.CheckpointID))
			fmt.Fprintf(c.out, "  Execution: %s\n", ckpt.ExecutionID)
			fmt.Fprintf(c.out, "  Trigger:   %s\n", ckpt.Trigger)
			fmt.Fprintf(c.out, "  State:     %s\n", ckpt.State)
			fmt.Fprintf(c.out, "  Created:   %s\n", formatTime(ckpt.CreatedAt))
			if ckpt.FileSizeBytes != nil {
				fmt.Fprintf(c.out, "  Size:      %d bytes\n", *ckpt.FileSizeBytes)
			}
			return nil
		},
	}
}

func (c *console) newCheckpointsRestoreCmd() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "restore <checkpoint-id>",
		Short: "Restore an execution from a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			result, err := c.client.RestoreCheckpoint(ctx, args[0], resume)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(result)
			}

			fmt.Fprintf(c.out, "Execution %s restored from %s", result.ExecutionID, result.CheckpointID)
			if result.Status != "" {
				fmt.Fprintf(c.out, " (%s)", executionStatusStyle(result.Status).Sprint(result.Status))
			}
			fmt.Fprintln(c.out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", true, "resume the execution after restoring")
	return cmd
}
