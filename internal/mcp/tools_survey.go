package mcpserver

import (
	"context"
	"fmt"

	"surveys/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSurveyTools() {
	// ── list_surveys ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_surveys",
		mcp.WithDescription("List all published surveys"),
	), s.handleListSurveys)

	// ── get_survey ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_survey",
		mcp.WithDescription("Get a survey definition with its pages, components and logic"),
		mcp.WithString("surveyId", mcp.Description("ID of the survey"), mcp.Required()),
	), s.handleGetSurvey)

	// ── validate_survey ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("validate_survey",
		mcp.WithDescription("Check a survey definition for broken rules without saving it"),
		mcp.WithString("definition", mcp.Description("Survey definition as builder JSON"), mcp.Required()),
	), s.handleValidateSurvey)

	// ── import_survey ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("import_survey",
		mcp.WithDescription("Create or replace a survey from builder JSON. A definition with an existing id replaces it."),
		mcp.WithString("definition", mcp.Description("Survey definition as builder JSON"), mcp.Required()),
	), s.handleImportSurvey)

	// ── delete_survey ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_survey",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a survey with all its sessions and submissions. Requires confirm=true."),
		mcp.WithString("surveyId", mcp.Description("ID of the survey"), mcp.Required()),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete")),
	), s.handleDeleteSurvey)
}

func (s *Server) handleListSurveys(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveys, err := s.surveys.List()
	if err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}

	type surveySummary struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Pages int    `json:"pages"`
	}
	summaries := make([]surveySummary, len(surveys))
	for i, sv := range surveys {
		summaries[i] = surveySummary{ID: sv.ID, Title: sv.Title, Pages: len(sv.Pages)}
	}
	return jsonResult(summaries)
}

func (s *Server) handleGetSurvey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "surveyId")
	if err != nil {
		return nil, err
	}
	sv, err := s.surveys.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	return jsonResult(sv)
}

func (s *Server) handleValidateSurvey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, err := requireString(req, "definition")
	if err != nil {
		return nil, err
	}
	sv, err := service.Decode([]byte(def))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	problems := s.surveys.Validate(sv)
	if len(problems) == 0 {
		return textResult("Survey is valid."), nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return jsonResult(map[string]any{"valid": false, "problems": msgs})
}

func (s *Server) handleImportSurvey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, err := requireString(req, "definition")
	if err != nil {
		return nil, err
	}
	return flowResult(s.surveys.Import(ctx, []byte(def)))
}

func (s *Server) handleDeleteSurvey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "surveyId")
	if err != nil {
		return nil, err
	}
	if confirm, _ := req.GetArguments()["confirm"].(bool); !confirm {
		return mcp.NewToolResultError("refusing to delete without confirm=true"), nil
	}
	if err := s.surveys.Delete(ctx, id); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Deleted survey %s", id)), nil
}
