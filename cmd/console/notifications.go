package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/storage"
)

func (c *console) newNotificationsCmd() *cobra.Command {
	var (
		level  string
		since  time.Duration
		offset int
		limit  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show the local notification history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return c.followNotifications(cmd)
			}
			if c.history == nil {
				return fmt.Errorf("notification history is disabled (history.path is empty)")
			}

			filter := storage.NotificationFilter{Level: model.NotificationLevel(level)}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			ctx, cancel := c.commandContext(cmd)
			defer cancel()

			notifications, err := c.history.List(ctx, filter, offset, limit)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(notifications)
			}

			if len(notifications) == 0 {
				fmt.Fprintln(c.out, mutedStyle.Sprint("No notifications"))
				return nil
			}
			for _, n := range notifications {
				fmt.Fprintln(c.out, notificationLine(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only show this level (success, info, warning, error)")
	cmd.Flags().DurationVar(&since, "since", 0, "only show notifications newer than this")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of notifications to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of notifications")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream notifications published over NATS by any console")
	return cmd
}

func (c *console) followNotifications(cmd *cobra.Command) error {
	if c.natsChannel == nil {
		return fmt.Errorf("following notifications requires nats.url")
	}

	ctx := cmd.Context()
	lines := make(chan string, 64)
	err := c.natsChannel.Follow(ctx, func(n *model.Notification) {
		select {
		case lines <- notificationLine(n):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	for {
		select {
		case line := <-lines:
			fmt.Fprintln(c.out, line)
		case <-ctx.Done():
			return nil
		}
	}
}

func notificationLine(n *model.Notification) string {
	style := infoStyle
	switch n.Level {
	case model.NotificationLevelSuccess:
		style = successStyle
	case model.NotificationLevelError:
		style = errorStyle
	case model.NotificationLevelWarning:
		style = warningStyle
	}

	line := fmt.Sprintf("%s  %s  %s",
		n.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		style.Sprintf("%-7s", n.Level),
		n.Message)
	if n.Operation != "" {
		line += "  " + mutedStyle.Sprint(n.Operation)
	}
	return line
}
