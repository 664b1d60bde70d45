package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varyops/vary/internal/models"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	runs []*models.Run

	createRunErr error
	listRunsErr  error
}

func (m *mockStore) CreateRun(_ context.Context, run *models.Run) error {
	if m.createRunErr != nil {
		return m.createRunErr
	}
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, fmt.Errorf("run not found: %s", id)
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]*models.Run, error) {
	if m.listRunsErr != nil {
		return nil, m.listRunsErr
	}
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockStore) UpdateRun(_ context.Context, run *models.Run) error {
	for i, r := range m.runs {
		if r.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	return fmt.Errorf("run not found: %s", run.ID)
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func experimentJSON() string {
	return `{"id":7,"name":"cta-test","metrics":"CTA clicks","segments":[{"id":1,"name":"control","percentage":50},{"id":2,"name":"variant","percentage":50}]}`
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMCPServer_RegistersTools(t *testing.T) {
	s := NewServer(&mockStore{}, nil)
	srv := s.MCPServer()
	assert.NotNil(t, srv)
}

func TestHandleIntegrate_Success(t *testing.T) {
	ms := &mockStore{}
	s := NewServer(ms, func(_ context.Context, owner, repo string, exp *models.Experiment, onBranch func(string)) (*models.IntegrationResult, error) {
		assert.Equal(t, "acme", owner)
		assert.Equal(t, "shop", repo)
		assert.Equal(t, "cta-test", exp.Name)
		onBranch("experiment-cta-test-01abc")
		return &models.IntegrationResult{
			PRURL:             "https://github.com/acme/shop/pull/5",
			PRNumber:          5,
			BranchName:        "experiment-cta-test-01abc",
			ChangedFilesCount: 3,
			VerificationNotes: "verified",
		}, nil
	})

	result, err := s.handleIntegrate(context.Background(), callToolReq("vary_integrate", map[string]any{
		"owner":      "acme",
		"repo":       "shop",
		"experiment": experimentJSON(),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "https://github.com/acme/shop/pull/5", out["pr_url"])
	assert.Equal(t, float64(3), out["changed_files_count"])

	require.Len(t, ms.runs, 1)
	run := ms.runs[0]
	assert.Equal(t, models.RunStatusPRCreated, run.Status)
	assert.Equal(t, "experiment-cta-test-01abc", run.BranchName)
	assert.NotNil(t, run.FinishedAt)
}

func TestHandleIntegrate_FailureRecordsRun(t *testing.T) {
	ms := &mockStore{}
	s := NewServer(ms, func(_ context.Context, _, _ string, _ *models.Experiment, onBranch func(string)) (*models.IntegrationResult, error) {
		onBranch("experiment-cta-test-01abc")
		return nil, errors.New("integration changed 1 file(s), need at least 3")
	})

	result, err := s.handleIntegrate(context.Background(), callToolReq("vary_integrate", map[string]any{
		"owner":      "acme",
		"repo":       "shop",
		"experiment": experimentJSON(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "need at least 3")

	require.Len(t, ms.runs, 1)
	run := ms.runs[0]
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "experiment-cta-test-01abc", run.BranchName)
	assert.Contains(t, run.Error, "need at least 3")
}

func TestHandleIntegrate_BadInput(t *testing.T) {
	s := NewServer(&mockStore{}, nil)

	t.Run("missing owner", func(t *testing.T) {
		result, err := s.handleIntegrate(context.Background(), callToolReq("vary_integrate", map[string]any{
			"repo": "shop", "experiment": experimentJSON(),
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("malformed experiment JSON", func(t *testing.T) {
		result, err := s.handleIntegrate(context.Background(), callToolReq("vary_integrate", map[string]any{
			"owner": "acme", "repo": "shop", "experiment": "{not json",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("experiment without segments", func(t *testing.T) {
		result, err := s.handleIntegrate(context.Background(), callToolReq("vary_integrate", map[string]any{
			"owner": "acme", "repo": "shop", "experiment": `{"name":"x","segments":[]}`,
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleListRuns(t *testing.T) {
	now := time.Now().UTC()
	ms := &mockStore{runs: []*models.Run{
		{ID: "run-1", Owner: "acme", Repo: "shop", ExperimentName: "cta-test",
			Status: models.RunStatusPRCreated, PRURL: "https://github.com/acme/shop/pull/5",
			ChangedFiles: 3, StartedAt: now, FinishedAt: &now},
		{ID: "run-2", Owner: "acme", Repo: "shop", ExperimentName: "hero-copy",
			Status: models.RunStatusFailed, Error: "no terminal payload", StartedAt: now},
	}}
	s := NewServer(ms, nil)

	result, err := s.handleListRuns(context.Background(), callToolReq("vary_list_runs", map[string]any{}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out []map[string]any
	resultJSON(t, result, &out)
	require.Len(t, out, 2)
	assert.Equal(t, "pr_created", out[0]["status"])
	assert.Equal(t, "no terminal payload", out[1]["error"])
	_, hasErr := out[0]["error"]
	assert.False(t, hasErr, "successful runs carry no error field")
}

func TestHandleGetRun(t *testing.T) {
	ms := &mockStore{runs: []*models.Run{
		{ID: "run-1", Owner: "acme", Repo: "shop", ExperimentName: "cta-test",
			Status: models.RunStatusImplementing, StartedAt: time.Now().UTC()},
	}}
	s := NewServer(ms, nil)

	result, err := s.handleGetRun(context.Background(), callToolReq("vary_get_run", map[string]any{"run_id": "run-1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "cta-test", out["experiment_name"])
	assert.Equal(t, "implementing", out["status"])

	missing, err := s.handleGetRun(context.Background(), callToolReq("vary_get_run", map[string]any{"run_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, missing.IsError)
}
