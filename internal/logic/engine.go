package logic

import (
	"log"
	"math"
	"time"

	"surveys/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Engine — survey navigation and conditional logic
// ─────────────────────────────────────────────────────────────

// Engine walks one respondent through an ordered list of pages. It owns the
// response snapshot and the current position; every other answer (what is
// visible, whether the respondent may advance, where "next" leads) is
// computed from those two on demand.
//
// An Engine is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves.
type Engine struct {
	pages     []domain.Page
	index     map[string]int
	rules     map[string][]compiledRule
	responses domain.Responses
	current   int
	history   []string

	observers  []observer
	nextObsID  int
	endingPage string

	logger *log.Logger
	now    func() time.Time
}

type compiledRule struct {
	rule domain.SkipRule
	expr Expr // nil when the rule failed to parse
}

type observer struct {
	id int
	fn func(Completion)
}

// Completion is delivered to OnComplete observers when an end_survey
// condition on the current page becomes satisfied.
type Completion struct {
	Responses   domain.Responses `json:"responses"`
	CompletedAt time.Time        `json:"completedAt"`
	PageID      string           `json:"pageId"`
	ConditionID string           `json:"conditionId"`
}

// State is the resumable part of an engine.
type State struct {
	Responses        domain.Responses `json:"responses"`
	CurrentPageIndex int              `json:"currentPageIndex"`
	History          []string         `json:"history,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

type Option func(*Engine)

// WithLogger routes engine warnings to l instead of the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now for completion and export timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine positioned on the first page. Skip rule expressions
// are parsed here; a rule that does not parse is logged and never fires.
func New(pages []domain.Page, initial domain.Responses, opts ...Option) *Engine {
	e := &Engine{
		pages:     append([]domain.Page(nil), pages...),
		index:     make(map[string]int, len(pages)),
		rules:     make(map[string][]compiledRule, len(pages)),
		responses: initial,
		logger:    log.Default(),
		now:       time.Now,
	}
	if e.responses == nil {
		e.responses = domain.Responses{}
	}
	for _, opt := range opts {
		opt(e)
	}
	for i, p := range e.pages {
		if _, dup := e.index[p.ID]; dup {
			continue
		}
		e.index[p.ID] = i
		rules := p.SkipRules()
		if len(rules) == 0 {
			continue
		}
		compiled := make([]compiledRule, len(rules))
		for j, r := range rules {
			compiled[j].rule = r
			x, err := ParseExpr(r.Condition)
			if err != nil {
				e.logger.Printf("[LOGIC] skip rule %q on page %s disabled: %v", r.ID, p.ID, err)
				continue
			}
			compiled[j].expr = x
		}
		e.rules[p.ID] = compiled
	}
	return e
}

// ── Response store ─────────────────────────────────────────

// UpdateResponse overwrites the answer for componentID, then checks the
// current page for an end_survey condition that has just become true.
func (e *Engine) UpdateResponse(componentID string, value any) {
	e.responses[componentID] = value
	e.checkEndConditions()
}

// Response returns the stored answer and whether one was set.
func (e *Engine) Response(componentID string) (any, bool) {
	v, ok := e.responses[componentID]
	return v, ok
}

// Responses returns a copy of the response snapshot.
func (e *Engine) Responses() domain.Responses {
	return e.responses.Clone()
}

// ── Pages & position ───────────────────────────────────────

// Pages returns the pages in sequential order.
func (e *Engine) Pages() []domain.Page {
	return append([]domain.Page(nil), e.pages...)
}

func (e *Engine) CurrentPageIndex() int { return e.current }

// CurrentPage returns a copy of the page the respondent is on, or nil when
// the survey has no pages.
func (e *Engine) CurrentPage() *domain.Page {
	if e.current < 0 || e.current >= len(e.pages) {
		return nil
	}
	p := e.pages[e.current]
	return &p
}

// History returns the visited page ids that back navigation will unwind,
// oldest first.
func (e *Engine) History() []string {
	return append([]string(nil), e.history...)
}

func (e *Engine) page(id string) (*domain.Page, bool) {
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return &e.pages[i], true
}

// ── Visibility ─────────────────────────────────────────────

// VisibleComponents returns the page's components that pass their show/hide
// conditions, in declared order. Components with no conditions are always
// visible. An unknown page id yields nil.
func (e *Engine) VisibleComponents(pageID string) []domain.Component {
	p, ok := e.page(pageID)
	if !ok {
		return nil
	}
	conds := p.Conditions()
	out := make([]domain.Component, 0, len(p.Components))
	for _, c := range p.Components {
		if visibleUnder(conds, c.ID, e.responses) {
			out = append(out, c)
		}
	}
	return out
}

// ── Gating ─────────────────────────────────────────────────

// CanNavigateToNextPage reports whether every visible required component on
// the current page has an answer.
func (e *Engine) CanNavigateToNextPage() bool {
	p := e.CurrentPage()
	if p == nil {
		return false
	}
	return len(e.missingRequired(p.ID)) == 0
}

// MissingRequired lists the visible required components on the current page
// that still lack an answer.
func (e *Engine) MissingRequired() []string {
	p := e.CurrentPage()
	if p == nil {
		return nil
	}
	return e.missingRequired(p.ID)
}

func (e *Engine) missingRequired(pageID string) []string {
	var missing []string
	for _, c := range e.VisibleComponents(pageID) {
		if c.Required && !answered(lookup(e.responses, c.ID)) {
			missing = append(missing, c.ID)
		}
	}
	return missing
}

// ── Flow ───────────────────────────────────────────────────

// NextPageID resolves where "next" leads from the current page. Skip rules
// are tried first in declared order, then skip_to/end_survey conditions,
// then the following page. ok is false when the flow ends here.
func (e *Engine) NextPageID() (id string, ok bool) {
	p := e.CurrentPage()
	if p == nil {
		return "", false
	}
	for _, r := range e.rules[p.ID] {
		if r.expr != nil && r.expr.Eval(e.responses) {
			return r.rule.TargetPageID, true
		}
	}
	for _, c := range p.Conditions() {
		if !evaluateCondition(c, e.responses) {
			continue
		}
		if c.Action == domain.ActionSkipTo && c.Target != "" {
			return c.Target, true
		}
		if c.Action == domain.ActionEndSurvey {
			return "", false
		}
	}
	if next := e.current + 1; next < len(e.pages) {
		return e.pages[next].ID, true
	}
	return "", false
}

// NavigateToPage jumps to pageID. Unknown ids leave the engine untouched.
func (e *Engine) NavigateToPage(pageID string) bool {
	i, ok := e.index[pageID]
	if !ok {
		return false
	}
	if i != e.current {
		if p := e.CurrentPage(); p != nil {
			e.history = append(e.history, p.ID)
		}
		e.current = i
	}
	return true
}

// NavigateToNextPage follows NextPageID. It returns false when the flow
// ends or points at a page that does not exist.
func (e *Engine) NavigateToNextPage() bool {
	id, ok := e.NextPageID()
	if !ok || id == "" {
		return false
	}
	return e.NavigateToPage(id)
}

// NavigateToPreviousPage returns to the page the respondent came from,
// unwinding skip jumps. Without recorded history it steps back one page.
func (e *Engine) NavigateToPreviousPage() bool {
	if n := len(e.history); n > 0 {
		prev := e.history[n-1]
		e.history = e.history[:n-1]
		e.current = e.index[prev]
		return true
	}
	if e.current <= 0 {
		return false
	}
	e.current--
	return true
}

// ── Progress & completion ──────────────────────────────────

// Progress is the current position as a rounded percentage of all pages.
// Pages that will be skipped still count.
func (e *Engine) Progress() int {
	if len(e.pages) == 0 {
		return 0
	}
	return int(math.Floor(float64(e.current)/float64(len(e.pages))*100 + 0.5))
}

// IsSurveyComplete is true once the flow has nowhere left to go and the
// respondent is on the last page.
func (e *Engine) IsSurveyComplete() bool {
	_, ok := e.NextPageID()
	return !ok && e.current == len(e.pages)-1
}

// OnComplete registers fn to receive completion notifications and returns a
// function that removes it. Observers run synchronously, in registration
// order, inside the UpdateResponse call that triggered them.
func (e *Engine) OnComplete(fn func(Completion)) (unsubscribe func()) {
	e.nextObsID++
	id := e.nextObsID
	e.observers = append(e.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range e.observers {
			if o.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// satisfiedEnd returns the first end_survey condition on the current page
// whose predicate holds.
func (e *Engine) satisfiedEnd() (pageID, conditionID string, ok bool) {
	p := e.CurrentPage()
	if p == nil {
		return "", "", false
	}
	for _, c := range p.Conditions() {
		if evaluateCondition(c, e.responses) && c.Action == domain.ActionEndSurvey {
			return p.ID, c.ID, true
		}
	}
	return "", "", false
}

// checkEndConditions notifies observers when an end_survey condition turns
// true. It fires once per page until the condition turns false again.
func (e *Engine) checkEndConditions() {
	pageID, condID, ok := e.satisfiedEnd()
	if !ok {
		e.endingPage = ""
		return
	}
	if e.endingPage == pageID {
		return
	}
	e.endingPage = pageID
	done := Completion{
		Responses:   e.responses.Clone(),
		CompletedAt: e.now(),
		PageID:      pageID,
		ConditionID: condID,
	}
	for _, o := range append([]observer(nil), e.observers...) {
		o.fn(done)
	}
}

// ── Persistence ────────────────────────────────────────────

// ExportState captures responses, position and history for a draft save.
func (e *Engine) ExportState() State {
	return State{
		Responses:        e.responses.Clone(),
		CurrentPageIndex: e.current,
		History:          e.History(),
		Timestamp:        e.now(),
	}
}

// ImportState restores a previously exported state. The index is clamped
// into range and history entries for unknown pages are dropped. Importing
// never raises a completion notification.
func (e *Engine) ImportState(s State) {
	e.responses = s.Responses.Clone()
	e.current = s.CurrentPageIndex
	if e.current >= len(e.pages) {
		e.current = len(e.pages) - 1
	}
	if e.current < 0 {
		e.current = 0
	}
	e.history = e.history[:0]
	for _, id := range s.History {
		if _, ok := e.index[id]; ok {
			e.history = append(e.history, id)
		}
	}
	e.endingPage, _, _ = e.satisfiedEnd()
}
