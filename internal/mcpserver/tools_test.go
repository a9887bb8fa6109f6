package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkit/brief/internal/config"
	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/service"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	cfg := config.Default()
	cfg.RootDir = filepath.Join(t.TempDir(), ".brief")
	cfg.LockWaitMS = 500
	ix, err := index.Load(cfg.IndexPath())
	require.NoError(t, err)
	return service.New(cfg, ix, nil)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestCreateAndGetTools(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	create := &CreateTool{svc: svc}
	res, err := create.Handle(context.Background(), callRequest("report_create", map[string]any{
		"title":    "MCP Report",
		"template": "default",
		"tags":     []any{"mcp"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var created struct {
		ReportID string `json:"report_id"`
		Version  int    `json:"outline_version"`
		Sections int    `json:"sections"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &created))
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, 2, created.Sections)

	get := &GetTool{svc: svc}
	res, err = get.Handle(context.Background(), callRequest("report_get", map[string]any{
		"selector": "tag:mcp",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), created.ReportID)
}

func TestGetTool_NotFoundIsProtocolError(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	get := &GetTool{svc: svc}
	res, err := get.Handle(context.Background(), callRequest("report_get", map[string]any{
		"selector": "nothing here",
	}))
	require.NoError(t, err, "resolution failures are tool results, not transport errors")
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "resolution_not_found")
}

func TestEvolveTool_ValidationFailureCarriesStructuredErrors(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	create := &CreateTool{svc: svc}
	res, err := create.Handle(context.Background(), callRequest("report_create", map[string]any{
		"title": "Strict",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	evolve := &EvolveTool{svc: svc}
	res, err = evolve.Handle(context.Background(), callRequest("report_evolve", map[string]any{
		"selector": "Strict",
		"changes": map[string]any{
			"insights_to_add": []any{
				map[string]any{"summary": "uncited", "importance": 3},
			},
		},
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "validation_failed")
	assert.Contains(t, text, "missing_citation")
}

func TestEvolveTool_AppliesBatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	create := &CreateTool{svc: svc}
	res, err := create.Handle(context.Background(), callRequest("report_create", map[string]any{
		"title": "Evolving",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	evolve := &EvolveTool{svc: svc}
	res, err = evolve.Handle(context.Background(), callRequest("report_evolve", map[string]any{
		"selector":         "Evolving",
		"expected_version": 1,
		"allow_uncited":    true,
		"changes": map[string]any{
			"insights_to_add": []any{
				map[string]any{"summary": "allowed without source", "importance": 5},
			},
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, "result: %s", resultText(t, res))

	var out struct {
		Version  int    `json:"outline_version"`
		ActionID string `json:"action_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 2, out.Version)
	assert.NotEmpty(t, out.ActionID)

	// Stale expected_version surfaces as a version_mismatch tool error.
	res, err = evolve.Handle(context.Background(), callRequest("report_evolve", map[string]any{
		"selector":         "Evolving",
		"expected_version": 1,
		"changes":          map[string]any{"title_change": "nope"},
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "version_mismatch")
}

func TestListAndDeleteTools(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	create := &CreateTool{svc: svc}
	for _, title := range []string{"One", "Two"} {
		res, err := create.Handle(context.Background(), callRequest("report_create", map[string]any{
			"title": title,
			"tags":  []any{"batch"},
		}))
		require.NoError(t, err)
		require.False(t, res.IsError)
	}

	list := &ListTool{svc: svc}
	res, err := list.Handle(context.Background(), callRequest("report_list", map[string]any{
		"tags": []any{"batch"},
	}))
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &entries))
	assert.Len(t, entries, 2)

	del := &DeleteTool{svc: svc}
	res, err = del.Handle(context.Background(), callRequest("report_delete", map[string]any{
		"selector": "One",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "trash_path")

	res, err = list.Handle(context.Background(), callRequest("report_list", map[string]any{}))
	require.NoError(t, err)
	entries = nil
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &entries))
	assert.Len(t, entries, 1)
}
