package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/dashboard"
	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/monitor"
	"github.com/t77yq/roma-console/internal/notify"
	"github.com/t77yq/roma-console/internal/poller"
	"github.com/t77yq/roma-console/internal/scheduler"
)

const (
	jobDashboardRefresh = "dashboard-refresh"
	jobHistoryPrune     = "history-prune"
)

func (c *console) newServeCmd() *cobra.Command {
	var followActive bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live dashboard until interrupted",
		Long: "serve keeps the dashboard and backend health fresh, follows running executions " +
			"and prunes the notification history on a schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.dispatcher.Register("log", notify.NewLogChannel(c.logger))

			var printMu sync.Mutex
			emit := func(line string) {
				printMu.Lock()
				defer printMu.Unlock()
				fmt.Fprintln(c.out, line)
			}

			var lastStatus model.HealthStatus
			health := monitor.NewHealthMonitor(c.client, c.logger,
				monitor.WithInterval(c.cfg.Health.Interval),
				monitor.WithListener(func(h *model.Health) {
					if h.Status != lastStatus {
						lastStatus = h.Status
						emit(fmt.Sprintf("Backend %s (version %s, %d active)",
							healthStatusStyle(h.Status).Sprint(h.Status), h.Version, h.ActiveExecutions))
					}
					if c.natsChannel != nil {
						if err := c.natsChannel.PublishHealth(h); err != nil {
							c.logger.Warn("Failed to publish health", zap.Error(err))
						}
					}
				}),
			)
			release := health.Observe(ctx)
			defer release()

			watcher := poller.NewWatcher(c.client, c.logger, c.pollerOptions()...)
			defer watcher.StopAll()

			board := dashboard.NewBoard(c.client, c.cfg.Dashboard.PageSize, c.logger)
			refresh := func(ctx context.Context) error {
				if err := board.Refresh(ctx); err != nil {
					return err
				}
				emit(statsLine(board.Stats()))

				if followActive {
					c.followActive(ctx, watcher, board.Snapshot().Executions, emit)
				}
				return nil
			}

			sched := scheduler.NewCronScheduler(c.logger)
			if err := sched.AddJob(jobDashboardRefresh, c.cfg.Dashboard.RefreshSchedule, refresh); err != nil {
				return err
			}
			if c.history != nil && c.cfg.History.Retention > 0 {
				retention := c.cfg.History.Retention
				err := sched.AddJob(jobHistoryPrune, c.cfg.History.PruneSchedule, func(ctx context.Context) error {
					_, err := c.history.DeleteBefore(ctx, time.Now().Add(-retention))
					return err
				})
				if err != nil {
					return err
				}
			}

			sched.Start(ctx)
			defer sched.Stop()

			_ = sched.RunNow(jobDashboardRefresh)

			<-ctx.Done()
			c.logger.Info("Shutting down console")
			return nil
		},
	}
	cmd.Flags().BoolVar(&followActive, "follow", true, "poll the status of running executions")
	return cmd
}

func (c *console) followActive(ctx context.Context, watcher *poller.Watcher, executions []model.Execution, emit func(string)) {
	for _, exec := range executions {
		if !exec.Status.IsActive() {
			continue
		}
		id := exec.ExecutionID
		var last model.ExecutionStatus
		_, err := watcher.Watch(ctx, id, func(s *model.StatusSnapshot) {
			if s.Status == last {
				return
			}
			last = s.Status
			emit(fmt.Sprintf("%s %s %s",
				mutedStyle.Sprint(id),
				executionStatusStyle(s.Status).Sprint(s.Status),
				progressBar(s.Progress, 20)))
		})
		if err != nil {
			c.logger.Warn("Failed to follow execution", zap.String("execution_id", id), zap.Error(err))
		}
	}
}
