package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSessionTools() {
	sessionArg := mcp.WithString("sessionId", mcp.Description("ID of the session"), mcp.Required())

	// ── start_session ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a respondent session on the first page of a survey"),
		mcp.WithString("surveyId", mcp.Description("ID of the survey"), mcp.Required()),
	), s.handleStartSession)

	// ── answer ─────────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Record an answer. Returns the updated page, which may show or hide questions or complete the survey."),
		sessionArg,
		mcp.WithString("componentId", mcp.Description("ID of the question"), mcp.Required()),
		mcp.WithString("value", mcp.Description(`Answer as JSON (42, true, ["a","b"], "text"); non-JSON input is taken as text`), mcp.Required()),
	), s.handleAnswer)

	// ── next_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("next_page",
		mcp.WithDescription("Advance past the current page, following skip logic. Submits the survey when there is nowhere left to go."),
		sessionArg,
	), s.handleNextPage)

	// ── previous_page ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("previous_page",
		mcp.WithDescription("Return to the page the respondent came from"),
		sessionArg,
	), s.handlePreviousPage)

	// ── go_to_page ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("go_to_page",
		mcp.WithDescription("Jump directly to a page, bypassing required-question checks"),
		sessionArg,
		mcp.WithString("pageId", mcp.Description("ID of the target page"), mcp.Required()),
	), s.handleGoToPage)

	// ── session_state ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("session_state",
		mcp.WithDescription("Show the current page, visible questions, progress and answers of a session"),
		sessionArg,
	), s.handleSessionState)

	// ── save_draft ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_draft",
		mcp.WithDescription("Persist a session and return its resumable state"),
		sessionArg,
	), s.handleSaveDraft)

	// ── resume_session ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resume_session",
		mcp.WithDescription("Resume a saved session where the respondent left off"),
		sessionArg,
	), s.handleResumeSession)

	// ── abandon_session ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("abandon_session",
		mcp.WithDescription("Close a session without submitting it"),
		sessionArg,
	), s.handleAbandonSession)

	// ── session_history ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("session_history",
		mcp.WithDescription("List every answer recorded for a session, oldest first"),
		sessionArg,
	), s.handleSessionHistory)
}

func (s *Server) handleStartSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "surveyId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Start(ctx, id))
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	componentID, err := requireString(req, "componentId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Answer(ctx, id, componentID, decodeValue(req.GetString("value", ""))))
}

func (s *Server) handleNextPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Next(ctx, id))
}

func (s *Server) handlePreviousPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Previous(ctx, id))
}

func (s *Server) handleGoToPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	pageID, err := requireString(req, "pageId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.GoTo(ctx, id, pageID))
}

func (s *Server) handleSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.View(ctx, id))
}

func (s *Server) handleSaveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.SaveDraft(ctx, id))
}

func (s *Server) handleResumeSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Resume(ctx, id))
}

func (s *Server) handleAbandonSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Abandon(ctx, id); err != nil {
		return flowResult(nil, err)
	}
	return textResult("Session abandoned."), nil
}

func (s *Server) handleSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	return flowResult(s.sessions.Edits(id))
}
