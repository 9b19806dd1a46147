package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/poller"
)

func (c *console) pollerOptions() []poller.Option {
	pc := c.cfg.Poller
	if pc.Backoff.Enabled {
		return []poller.Option{poller.WithStrategy(&poller.ExponentialBackoff{
			InitialDelay: pc.Interval,
			MaxDelay:     pc.Backoff.MaxInterval,
			Multiplier:   pc.Backoff.Multiplier,
		})}
	}
	return []poller.Option{poller.WithInterval(pc.Interval)}
}

func (c *console) newWatchCmd() *cobra.Command {
	var backoff bool

	cmd := &cobra.Command{
		Use:   "watch <execution-id>...",
		Short: "Follow executions until they finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if backoff {
				c.cfg.Poller.Backoff.Enabled = true
			}
			watcher := poller.NewWatcher(c.client, c.logger, c.pollerOptions()...)
			defer watcher.StopAll()

			updates := make(chan model.StatusSnapshot)
			pollers := make([]*poller.Poller, 0, len(args))
			for _, id := range args {
				id := id
				p, err := watcher.Watch(ctx, id, func(s *model.StatusSnapshot) {
					snapshot := *s
					snapshot.ExecutionID = id
					select {
					case updates <- snapshot:
					case <-ctx.Done():
					}
				})
				if err != nil {
					return err
				}
				pollers = append(pollers, p)
			}

			finished := make(chan struct{})
			go func() {
				for _, p := range pollers {
					<-p.Done()
				}
				close(finished)
			}()

			for {
				select {
				case s := <-updates:
					if len(args) > 1 {
						fmt.Fprint(c.out, mutedStyle.Sprintf("%s ", s.ExecutionID))
					}
					c.printStatus(&s)
				case <-finished:
					return nil
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&backoff, "backoff", false, "Back off exponentially while status fetches fail")
	return cmd
}
