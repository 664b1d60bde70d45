package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/varyops/vary/internal/agent"
	"github.com/varyops/vary/internal/integrate"
	"github.com/varyops/vary/internal/llm"
	"github.com/varyops/vary/internal/models"
	"github.com/varyops/vary/internal/output"
	"github.com/varyops/vary/internal/repo"
)

var integrateFile string

var integrateCmd = &cobra.Command{
	Use:   "integrate <owner>/<repo>",
	Short: "Integrate an experiment into a repository and open a PR",
	Long: `Integrate an A/B experiment into a GitHub repository.

The experiment definition is read from a YAML or JSON file:

  name: checkout-cta
  description: Test a green CTA button on the checkout page
  metrics: CTA click-through rate
  segments:
    - id: 1
      name: control
      percentage: 50
      instructions: Keep the current button
    - id: 2
      name: green-button
      percentage: 50
      instructions: Green button with "Buy now" copy

vary creates a working branch, writes the variant and tracking code,
and opens a pull request against the default branch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return integrateRun(cmd.Context(), args[0])
	},
}

func init() {
	integrateCmd.Flags().StringVarP(&integrateFile, "file", "f", "", "Experiment definition file (YAML or JSON)")
	_ = integrateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(integrateCmd)
}

func integrateRun(ctx context.Context, target string) error {
	owner, repoName, err := splitRepoArg(target)
	if err != nil {
		return err
	}

	exp, err := loadExperiment(integrateFile)
	if err != nil {
		return err
	}

	token := viper.GetString("github.token")
	if token == "" {
		return fmt.Errorf("github.token is not set (config file or VARY_GITHUB_TOKEN)")
	}
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return fmt.Errorf("anthropic.api_key is not set (config file or VARY_ANTHROPIC_API_KEY)")
	}

	if dryRun {
		ui.DryRunMsg("Would integrate experiment %q into %s/%s", exp.Name, owner, repoName)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	svc := newIntegrateService(owner, repoName, token, apiKey)
	run := &models.Run{
		Owner:          owner,
		Repo:           repoName,
		ExperimentName: exp.Name,
		Status:         models.RunStatusImplementing,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		return err
	}
	svc.OnBranchCreated = func(branch string) {
		run.BranchName = branch
		_ = s.UpdateRun(ctx, run)
		ui.Info("Working branch: %s", output.Cyan(branch))
	}

	ui.Info("Integrating %s into %s/%s ...", output.Cyan(exp.Name), owner, repoName)
	result, err := svc.Run(ctx, exp)

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		_ = s.UpdateRun(ctx, run)
		return err
	}

	run.Status = models.RunStatusPRCreated
	run.BranchName = result.BranchName
	run.PRURL = result.PRURL
	run.ChangedFiles = result.ChangedFilesCount
	_ = s.UpdateRun(ctx, run)

	ui.Success("Pull request opened: %s", output.Green(result.PRURL))
	ui.Info("Changed files: %d", result.ChangedFilesCount)
	if result.VerificationNotes != "" {
		ui.VerboseLog("Verification: %s", result.VerificationNotes)
	}
	return nil
}

// newIntegrateService wires a service for one owner/repo from config.
func newIntegrateService(owner, repoName, token, apiKey string) *integrate.Service {
	retry := llm.DefaultRetryPolicy()
	retry.MaxAttempts = viper.GetInt("agent.max_retries")

	agentCfg := agent.DefaultConfig()
	agentCfg.MaxTurns = viper.GetInt("agent.max_turns")
	agentCfg.MaxTokens = viper.GetInt64("agent.max_tokens")

	client := llm.NewClient(apiKey, viper.GetString("anthropic.model"), retry)
	acc := repo.NewGitHub(token, owner, repoName)

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return integrate.New(integrate.Config{
		Owner:      owner,
		Repo:       repoName,
		WebhookURL: viper.GetString("webhook.url"),
	}, acc, client, agentCfg, log)
}

func splitRepoArg(target string) (string, string, error) {
	parts := strings.Split(target, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected <owner>/<repo>, got %q", target)
	}
	return parts[0], parts[1], nil
}

func loadExperiment(path string) (*models.Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment file: %w", err)
	}
	var exp models.Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse experiment file: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}
