package domain

// SessionView is everything a renderer needs to draw the respondent's
// current position. It is rebuilt from the engine after every action.
type SessionView struct {
	SessionID       string        `json:"sessionId"`
	SurveyID        string        `json:"surveyId"`
	Status          SessionStatus `json:"status"`
	Page            *Page         `json:"page"`
	PageIndex       int           `json:"pageIndex"`
	PageCount       int           `json:"pageCount"`
	Components      []Component   `json:"components"`
	MissingRequired []string      `json:"missingRequired,omitempty"`
	CanNext         bool          `json:"canNext"`
	NextPageID      string        `json:"nextPageId,omitempty"`
	HasNext         bool          `json:"hasNext"`
	CanGoBack       bool          `json:"canGoBack"`
	Progress        int           `json:"progress"`
	ShowProgress    bool          `json:"showProgress"`
	Complete        bool          `json:"complete"`
	Responses       Responses     `json:"responses"`
}
