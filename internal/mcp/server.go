package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"surveys/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for the survey runtime.
// It exposes tools, resources, and prompts so agents can author surveys
// and walk respondents through them.
type Server struct {
	mcp *server.MCPServer

	// Services (injected from app layer)
	surveys  *service.SurveyService
	sessions *service.SessionService
	settings *service.SettingsService
	janitor  *service.DraftJanitor
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Notifier *Notifier // optional; attached to this server's clients
	Surveys  *service.SurveyService
	Sessions *service.SessionService
	Settings *service.SettingsService
	Janitor  *service.DraftJanitor
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		surveys:  deps.Surveys,
		sessions: deps.Sessions,
		settings: deps.Settings,
		janitor:  deps.Janitor,
	}

	s.mcp = server.NewMCPServer(
		"surveys-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)
	if deps.Notifier != nil {
		deps.Notifier.attach(s.mcp)
	}

	s.registerSurveyTools()
	s.registerSessionTools()
	s.registerAdminTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// respondentErrors are failures the caller can act on, reported as tool
// errors instead of protocol errors.
var respondentErrors = []error{
	service.ErrNotReady,
	service.ErrSessionBusy,
	service.ErrSessionClosed,
	service.ErrSessionExpired,
	service.ErrSessionNotFound,
	service.ErrPageNotFound,
	service.ErrAtFirstPage,
	service.ErrBackDisabled,
	service.ErrResponseLimit,
	service.ErrInvalidSurvey,
}

// flowResult turns a service result into a tool result.
func flowResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		for _, known := range respondentErrors {
			if errors.Is(err, known) {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		return nil, err
	}
	return jsonResult(v)
}

// requireString returns a non-empty string argument.
func requireString(req mcp.CallToolRequest, name string) (string, error) {
	v := req.GetString(name, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
