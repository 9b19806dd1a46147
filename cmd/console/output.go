package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/t77yq/roma-console/internal/model"
)

var (
	headerStyle  = color.New(color.FgCyan, color.Bold)
	successStyle = color.New(color.FgGreen)
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgYellow, color.Bold)
	infoStyle    = color.New(color.FgCyan)
	mutedStyle   = color.New(color.FgHiBlack)
)

const (
	checkmark = "✓"
	xmark     = "✗"
	bullet    = "•"
)

func executionStatusStyle(status model.ExecutionStatus) *color.Color {
	switch status {
	case model.ExecutionStatusRunning:
		return infoStyle
	case model.ExecutionStatusCompleted:
		return successStyle
	case model.ExecutionStatusFailed:
		return errorStyle
	case model.ExecutionStatusCancelled:
		return warningStyle
	default:
		return mutedStyle
	}
}

func healthStatusStyle(status model.HealthStatus) *color.Color {
	switch status {
	case model.HealthStatusHealthy:
		return successStyle
	case model.HealthStatusDegraded:
		return warningStyle
	case model.HealthStatusUnhealthy:
		return errorStyle
	default:
		return mutedStyle
	}
}

func (c *console) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t).Round(time.Second)
	if d < time.Second {
		return "just now"
	}
	return d.String() + " ago"
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func progressBar(p float64, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	filled := int(p*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func (c *console) printExecutions(executions []model.Execution) {
	fmt.Fprintln(c.out, headerStyle.Sprintf("%-36s  %-9s  %-16s  %-19s  %s", "ID", "STATUS", "TASKS", "CREATED", "GOAL"))
	for _, exec := range executions {
		tasks := fmt.Sprintf("%d/%d", exec.CompletedTasks, exec.TotalTasks)
		if exec.FailedTasks > 0 {
			tasks += fmt.Sprintf(" (%d failed)", exec.FailedTasks)
		}
		if exec.Anomalous() {
			tasks += " !"
		}
		fmt.Fprintf(c.out, "%-36s  %s  %-16s  %-19s  %s\n",
			exec.ExecutionID,
			executionStatusStyle(exec.Status).Sprintf("%-9s", exec.Status),
			tasks,
			formatTime(exec.CreatedAt),
			truncate(exec.InitialGoal, 60))
	}
}

func (c *console) printExecution(exec *model.Execution) {
	fmt.Fprintln(c.out, headerStyle.Sprintf("Execution %s", exec.ExecutionID))
	fmt.Fprintf(c.out, "  Status:    %s\n", executionStatusStyle(exec.Status).Sprint(exec.Status))
	fmt.Fprintf(c.out, "  Goal:      %s\n", exec.InitialGoal)
	fmt.Fprintf(c.out, "  Max depth: %d\n", exec.MaxDepth)
	fmt.Fprintf(c.out, "  Tasks:     %d completed, %d failed, %d total %s\n",
		exec.CompletedTasks, exec.FailedTasks, exec.TotalTasks, progressBar(exec.Progress(), 20))
	fmt.Fprintf(c.out, "  Created:   %s\n", formatTime(exec.CreatedAt))
	fmt.Fprintf(c.out, "  Updated:   %s\n", formatTime(exec.UpdatedAt))
	if exec.Anomalous() {
		fmt.Fprintln(c.out, warningStyle.Sprint("  Task counters are inconsistent"))
	}
}

func (c *console) printStatus(s *model.StatusSnapshot) {
	line := fmt.Sprintf("%s %s %s %3.0f%% %d/%d",
		formatTime(s.LastUpdated),
		executionStatusStyle(s.Status).Sprintf("%-9s", s.Status),
		progressBar(s.Progress, 20),
		s.Progress*100,
		s.CompletedTasks,
		s.TotalTasks)
	if s.CurrentTaskGoal != "" {
		line += " " + mutedStyle.Sprint(truncate(s.CurrentTaskGoal, 50))
	}
	if s.EstimatedRemainingSeconds != nil {
		line += fmt.Sprintf(" (~%s left)", (time.Duration(*s.EstimatedRemainingSeconds) * time.Second).String())
	}
	fmt.Fprintln(c.out, line)
}

func statsLine(stats model.DashboardStats) string {
	return fmt.Sprintf("%s %d total  %s  %s  %s",
		headerStyle.Sprint("Executions:"),
		stats.TotalExecutions,
		infoStyle.Sprintf("%d active", stats.ActiveExecutions),
		successStyle.Sprintf("%d completed", stats.CompletedExecutions),
		errorStyle.Sprintf("%d failed", stats.FailedExecutions))
}
