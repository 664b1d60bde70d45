package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/varyops/vary/internal/output"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List integration runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun(cmd.Context())
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show details of an integration run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsShowRun(cmd.Context(), args[0])
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runsListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	runs, err := s.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No integration runs yet.")
		return nil
	}

	table := ui.Table([]string{"ID", "Repo", "Experiment", "Status", "Files", "Started", "Duration"})
	for _, r := range runs {
		duration := "running"
		if r.FinishedAt != nil {
			duration = formatDuration(r.FinishedAt.Sub(r.StartedAt))
		}

		table.Append([]string{
			shortID(r.ID),
			r.Owner + "/" + r.Repo,
			r.ExperimentName,
			output.RunStatusColor(string(r.Status)),
			fmt.Sprintf("%d", r.ChangedFiles),
			timeAgo(r.StartedAt),
			duration,
		})
	}
	table.Render()
	return nil
}

func runsShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}

	ui.Info("Run %s", output.Cyan(run.ID))
	ui.Info("Repository: %s/%s", run.Owner, run.Repo)
	ui.Info("Experiment: %s", run.ExperimentName)
	ui.Info("Status: %s", output.RunStatusColor(string(run.Status)))
	if run.BranchName != "" {
		ui.Info("Branch: %s", run.BranchName)
	}
	if run.PRURL != "" {
		ui.Info("Pull request: %s", output.Green(run.PRURL))
	}
	if run.ChangedFiles > 0 {
		ui.Info("Changed files: %d", run.ChangedFiles)
	}
	ui.Info("Started: %s", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		ui.Info("Duration: %s", formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}
	if run.Error != "" {
		ui.Error("Error: %s", run.Error)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
