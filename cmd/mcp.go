package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varyops/vary/internal/mcp"
	"github.com/varyops/vary/internal/models"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients run integrations and inspect run history.
Configure in Claude Code with:

  {
    "mcpServers": {
      "vary": { "command": "vary", "args": ["mcp"] }
    }
  }

Available tools: vary_integrate, vary_list_runs, vary_get_run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	token := viper.GetString("github.token")
	if token == "" {
		return fmt.Errorf("github.token is not set (config file or VARY_GITHUB_TOKEN)")
	}
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return fmt.Errorf("anthropic.api_key is not set (config file or VARY_ANTHROPIC_API_KEY)")
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	integrateFn := func(ctx context.Context, owner, repoName string, exp *models.Experiment, onBranch func(string)) (*models.IntegrationResult, error) {
		svc := newIntegrateService(owner, repoName, token, apiKey)
		svc.OnBranchCreated = onBranch
		return svc.Run(ctx, exp)
	}

	return mcp.NewServer(s, integrateFn).ServeStdio(ctx)
}
