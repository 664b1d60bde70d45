package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/varyops/vary/internal/models"
	"github.com/varyops/vary/internal/store"
)

// IntegrateFunc runs one integration against owner/repo. onBranch is called
// as soon as the working branch exists, so partial work is traceable even
// when the run later fails.
type IntegrateFunc func(ctx context.Context, owner, repo string, exp *models.Experiment, onBranch func(string)) (*models.IntegrationResult, error)

// Server wraps the vary run pipeline and exposes it as MCP tools.
type Server struct {
	store     store.Store
	integrate IntegrateFunc
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store, integrate IntegrateFunc) *Server {
	return &Server{store: s, integrate: integrate}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("vary", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.integrateTool())
	srv.AddTool(s.listRunsTool())
	srv.AddTool(s.getRunTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// vary_integrate
func (s *Server) integrateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vary_integrate",
		mcp.WithDescription("Integrate an A/B experiment into a GitHub repository and open a pull request. The experiment is a JSON object with name, description, metrics, and segments (each with id, name, instructions, percentage). Returns the PR URL, branch name, and changed file count."),
		mcp.WithString("owner", mcp.Required(), mcp.Description("GitHub repository owner")),
		mcp.WithString("repo", mcp.Required(), mcp.Description("GitHub repository name")),
		mcp.WithString("experiment", mcp.Required(), mcp.Description("Experiment definition as a JSON object")),
	)
	return tool, s.handleIntegrate
}

func (s *Server) handleIntegrate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: owner"), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}
	expJSON, err := request.RequireString("experiment")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: experiment"), nil
	}

	var exp models.Experiment
	if err := json.Unmarshal([]byte(expJSON), &exp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid experiment JSON: %v", err)), nil
	}
	if err := exp.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid experiment: %v", err)), nil
	}

	run := &models.Run{
		Owner:          owner,
		Repo:           repo,
		ExperimentName: exp.Name,
		Status:         models.RunStatusImplementing,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record run: %v", err)), nil
	}

	result, err := s.integrate(ctx, owner, repo, &exp, func(branch string) {
		run.BranchName = branch
		_ = s.store.UpdateRun(ctx, run)
	})

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		_ = s.store.UpdateRun(ctx, run)
		return mcp.NewToolResultError(fmt.Sprintf("integration failed: %v", err)), nil
	}

	run.Status = models.RunStatusPRCreated
	run.BranchName = result.BranchName
	run.PRURL = result.PRURL
	run.ChangedFiles = result.ChangedFilesCount
	_ = s.store.UpdateRun(ctx, run)

	out := map[string]any{
		"run_id":              run.ID,
		"pr_url":              result.PRURL,
		"pr_number":           result.PRNumber,
		"branch_name":         result.BranchName,
		"changed_files_count": result.ChangedFilesCount,
		"verification_notes":  result.VerificationNotes,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// vary_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vary_list_runs",
		mcp.WithDescription("List recent integration runs, newest first. Each run has id, owner, repo, experiment name, branch, status (implementing/pr_created/failed), PR URL, and changed file count."),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	out := make([]map[string]any, len(runs))
	for i, run := range runs {
		out[i] = runOut(run)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// vary_get_run
func (s *Server) getRunTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vary_get_run",
		mcp.WithDescription("Get one integration run by ID, including its error message when the run failed."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID (ULID)")),
	)
	return tool, s.handleGetRun
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
	}

	data, err := json.Marshal(runOut(run))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal run: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func runOut(run *models.Run) map[string]any {
	out := map[string]any{
		"id":              run.ID,
		"owner":           run.Owner,
		"repo":            run.Repo,
		"experiment_name": run.ExperimentName,
		"branch_name":     run.BranchName,
		"status":          string(run.Status),
		"pr_url":          run.PRURL,
		"changed_files":   run.ChangedFiles,
		"started_at":      run.StartedAt.Format(time.RFC3339),
	}
	if run.Error != "" {
		out["error"] = run.Error
	}
	if run.FinishedAt != nil {
		out["finished_at"] = run.FinishedAt.Format(time.RFC3339)
	}
	return out
}
