package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/selector"
	"github.com/briefkit/brief/internal/service"
	"github.com/briefkit/brief/internal/storage"
)

// toolError maps a typed service error to a protocol-level error result,
// prefixing the machine-readable kind so agents can branch without
// string-matching the message.
func toolError(err error) *mcp.CallToolResult {
	kind := "internal"
	var resErr *selector.ResolutionError
	var verErr *service.VersionMismatchError
	var valErr *service.ValidationFailedError
	switch {
	case errors.As(err, &resErr):
		kind = "resolution_" + string(resErr.Kind)
	case errors.As(err, &verErr):
		kind = "version_mismatch"
	case errors.As(err, &valErr):
		data, _ := json.Marshal(valErr.Errors)
		return mcp.NewToolResultError(fmt.Sprintf("validation_failed: %s", data))
	case errors.Is(err, storage.ErrOutlineNotFound):
		kind = "not_found"
	case errors.Is(err, storage.ErrLockHeld):
		kind = "lock_held"
	case errors.Is(err, storage.ErrOutlineCorrupted), errors.Is(err, storage.ErrOutlineInvalid):
		kind = "corrupted"
	case errors.Is(err, storage.ErrBackupMissing), errors.Is(err, storage.ErrBackupCorrupted),
		errors.Is(err, service.ErrActionNotFound), errors.Is(err, service.ErrNoBackup):
		kind = "revert_failed"
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("internal: marshal response: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func stringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CreateTool creates a new report.
type CreateTool struct{ svc *service.Service }

func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("report_create",
		mcp.WithDescription("Create a new living report, optionally seeded from a template."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Report title")),
		mcp.WithString("template", mcp.Description("Template name: default, monthly_sales, quarterly_review, deep_dive, analyst_v1")),
		mcp.WithArray("tags", mcp.Description("Initial tags")),
	)
}

func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := t.svc.Create(ctx, title, req.GetString("template", ""), stringSlice(req.GetArguments(), "tags"), outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"report_id":       o.ReportID,
		"outline_version": o.OutlineVersion,
		"sections":        len(o.Sections),
	}), nil
}

// GetTool reads a report outline.
type GetTool struct{ svc *service.Service }

func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("report_get",
		mcp.WithDescription("Read a report's full outline by id, title, or tag:<value> selector."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report id, title, partial title, or tag:<value>")),
	)
}

func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := t.svc.GetOutline(sel)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(o), nil
}

// ListTool lists reports.
type ListTool struct{ svc *service.Service }

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("report_list",
		mcp.WithDescription("List reports, optionally filtered by status and tags (all tags must match)."),
		mcp.WithString("status", mcp.Description("active or archived")),
		mcp.WithArray("tags", mcp.Description("Tags the report must all carry")),
	)
}

func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := t.svc.List(index.ListOptions{
		Status: req.GetString("status", ""),
		Tags:   stringSlice(req.GetArguments(), "tags"),
	})
	return jsonResult(entries), nil
}

// EvolveTool applies a batch of proposed changes.
type EvolveTool struct{ svc *service.Service }

func (t *EvolveTool) Definition() mcp.Tool {
	return mcp.NewTool("report_evolve",
		mcp.WithDescription("Apply a batch of proposed changes to a report: insights/sections to "+
			"add, modify, or remove, plus title, status, and metadata updates. The whole batch is "+
			"validated first and applied atomically; on validation failure every problem is "+
			"returned at once. Set dry_run to validate without applying."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report id, title, or tag:<value>")),
		mcp.WithObject("changes", mcp.Required(), mcp.Description("Change batch: insights_to_add, insights_to_modify, insights_to_remove, sections_to_add, sections_to_modify, sections_to_remove, title_change, status_change, metadata_updates")),
		mcp.WithNumber("expected_version", mcp.Description("Reject the batch unless the current outline version matches")),
		mcp.WithBoolean("allow_uncited", mcp.Description("Permit new insights without citations")),
		mcp.WithBoolean("dry_run", mcp.Description("Validate and report the result without persisting")),
	)
}

func (t *EvolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, ok := req.GetArguments()["changes"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("changes must be an object"), nil
	}
	res, err := t.svc.Evolve(ctx, sel, raw, service.EvolveOptions{
		ExpectedVersion: req.GetInt("expected_version", 0),
		AllowUncited:    req.GetBool("allow_uncited", false),
		DryRun:          req.GetBool("dry_run", false),
		Actor:           outline.ActorAgent,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"report_id":       res.Outline.ReportID,
		"outline_version": res.Outline.OutlineVersion,
		"dry_run":         res.DryRun,
		"action_id":       res.ActionID,
		"summary":         res.Summary,
		"warnings":        res.Warnings,
	}), nil
}

// RevertTool restores a prior state.
type RevertTool struct{ svc *service.Service }

func (t *RevertTool) Definition() mcp.Tool {
	return mcp.NewTool("report_revert",
		mcp.WithDescription("Revert a report's content to the backup recorded by a past audit "+
			"action. The revert is itself audited and revertible; the version number always "+
			"moves forward."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report id, title, or tag:<value>")),
		mcp.WithString("action_id", mcp.Required(), mcp.Description("Audit action id to revert")),
	)
}

func (t *RevertTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actionID, err := req.RequireString("action_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := t.svc.Revert(ctx, sel, actionID, outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"report_id":       o.ReportID,
		"outline_version": o.OutlineVersion,
	}), nil
}

// ForkTool copies a report under a new id.
type ForkTool struct{ svc *service.Service }

func (t *ForkTool) Definition() mcp.Tool {
	return mcp.NewTool("report_fork",
		mcp.WithDescription("Create an independent copy of a report under a new id and title."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Source report selector")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title for the fork")),
	)
}

func (t *ForkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := t.svc.Fork(ctx, sel, title, outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"report_id": o.ReportID}), nil
}

// SynthesizeTool combines several reports into a new one.
type SynthesizeTool struct{ svc *service.Service }

func (t *SynthesizeTool) Definition() mcp.Tool {
	return mcp.NewTool("report_synthesize",
		mcp.WithDescription("Create a new report combining the insights of several source reports."),
		mcp.WithArray("selectors", mcp.Required(), mcp.Description("Two or more source report selectors")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title for the combined report")),
	)
}

func (t *SynthesizeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sels := stringSlice(req.GetArguments(), "selectors")
	o, err := t.svc.Synthesize(ctx, sels, title, outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"report_id": o.ReportID, "insights": len(o.Insights)}), nil
}

// ArchiveTool toggles a report's archived status.
type ArchiveTool struct{ svc *service.Service }

func (t *ArchiveTool) Definition() mcp.Tool {
	return mcp.NewTool("report_archive",
		mcp.WithDescription("Archive a report, or restore it to active."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report selector")),
		mcp.WithBoolean("restore", mcp.Description("Set active instead of archived")),
	)
}

func (t *ArchiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := t.svc.Archive(ctx, sel, !req.GetBool("restore", false), outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"report_id": o.ReportID, "status": o.Status()}), nil
}

// TagTool edits a report's tags.
type TagTool struct{ svc *service.Service }

func (t *TagTool) Definition() mcp.Tool {
	return mcp.NewTool("report_tag",
		mcp.WithDescription("Add and remove tags on a report."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report selector")),
		mcp.WithArray("add", mcp.Description("Tags to add")),
		mcp.WithArray("remove", mcp.Description("Tags to remove")),
	)
}

func (t *TagTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	o, err := t.svc.Tag(ctx, sel, stringSlice(args, "add"), stringSlice(args, "remove"), outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"report_id": o.ReportID, "tags": o.Tags()}), nil
}

// DeleteTool moves a report to the trash.
type DeleteTool struct{ svc *service.Service }

func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("report_delete",
		mcp.WithDescription("Delete a report. The report directory is moved to the trash, not erased."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report selector")),
	)
}

func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trashPath, err := t.svc.Delete(ctx, sel, outline.ActorAgent)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"trash_path": trashPath}), nil
}

// HistoryTool reads a report's audit trail.
type HistoryTool struct{ svc *service.Service }

func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("report_history",
		mcp.WithDescription("Read a report's audit events in order, oldest first. Action ids here are valid revert targets."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Report selector")),
	)
}

func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	events, err := t.svc.History(sel)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(events), nil
}
