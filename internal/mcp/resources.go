package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	surveysURI      = "surveys://surveys"
	surveyURIPrefix = "surveys://survey/"
)

func (s *Server) registerResources() {
	// ── surveys://surveys ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		surveysURI,
		"All Surveys",
		mcp.WithMIMEType("application/json"),
	), s.handleSurveysResource)

	// ── surveys://survey/{surveyId} ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			surveyURIPrefix+"{surveyId}",
			"Survey Definition",
		),
		s.handleSurveyResource,
	)
}

func (s *Server) handleSurveysResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	surveys, err := s.surveys.List()
	if err != nil {
		return nil, err
	}

	type surveySummary struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	summaries := make([]surveySummary, 0, len(surveys))
	for _, sv := range surveys {
		summaries = append(summaries, surveySummary{ID: sv.ID, Title: sv.Title})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      surveysURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSurveyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := surveyIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract surveyId from URI: %s", uri)
	}

	sv, err := s.surveys.Get(id)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(sv, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// surveyIDFromURI extracts the id from "surveys://survey/{id}".
func surveyIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, surveyURIPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
