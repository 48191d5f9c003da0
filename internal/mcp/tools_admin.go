package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerAdminTools() {
	// ── sweep_drafts ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sweep_drafts",
		mcp.WithDescription("Abandon stale drafts and delete old abandoned ones now instead of waiting for the schedule"),
	), s.handleSweepDrafts)

	// ── set_draft_retention ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_draft_retention",
		mcp.WithDescription("Set how many hours an untouched draft is kept before it is abandoned"),
		mcp.WithNumber("hours", mcp.Description("Retention in hours (minimum 1)"), mcp.Required()),
	), s.handleSetDraftRetention)
}

func (s *Server) handleSweepDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.janitor == nil {
		return mcp.NewToolResultError("draft janitor is not running"), nil
	}
	res, err := s.janitor.RunOnce(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep drafts: %w", err)
	}
	return jsonResult(res)
}

func (s *Server) handleSetDraftRetention(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hours, _ := req.GetArguments()["hours"].(float64)
	if err := s.settings.SetDraftRetention(time.Duration(hours) * time.Hour); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(fmt.Sprintf("Drafts are now kept for %dh.", int(hours))), nil
}
