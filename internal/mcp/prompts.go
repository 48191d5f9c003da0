package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("design_survey",
		mcp.WithPromptDescription("Guide through authoring a multi-page survey with branching logic"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What the survey is about"),
			mcp.RequiredArgument(),
		),
	), s.handleDesignSurveyPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("interview_respondent",
		mcp.WithPromptDescription("Conduct a survey conversationally, one page at a time"),
		mcp.WithArgument("surveyId",
			mcp.ArgumentDescription("ID of the survey to run"),
			mcp.RequiredArgument(),
		),
	), s.handleInterviewPrompt)
}

func (s *Server) handleDesignSurveyPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Design a survey about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Design a survey about "%s". Follow these steps:

1. Sketch 3-5 pages, each with an id, a title and a few components (id, type, label, required)
2. Add page logic where it helps:
   - conditions: {"id","field","operator","value","action","target"} with operators equals, not_equals, contains, greater_than, less_than, in, not_in and actions show, hide, skip_to, end_survey
   - skipLogic: {"id","condition","targetPageId"} where condition is an expression such as responses.Q1 === 'yes' && responses.age >= 18
3. Run validate_survey on the JSON and fix every reported problem
4. Save it with import_survey

Prefer hide conditions for follow-up questions and skip rules for whole-page branches.`, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleInterviewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	surveyID := req.Params.Arguments["surveyId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Interview a respondent with survey %s", surveyID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Run survey "%s" as a conversation. Follow these steps:

1. Call start_session and keep the returned sessionId
2. Ask only the questions listed in "components" of the current page
3. Record each reply with answer; re-read the returned components since answers can reveal or hide questions
4. When canNext is true, call next_page; if it reports unanswered questions, ask them
5. Stop when status becomes "completed" and thank the respondent

If the respondent wants a break, call save_draft and tell them the sessionId so resume_session can pick it up later.`, surveyID),
				},
			},
		},
	}, nil
}
