package logic

import (
	"errors"
	"fmt"

	"surveys/internal/domain"
)

// Problem is one authoring mistake found by Validate.
type Problem struct {
	PageID string
	RuleID string
	Msg    string
}

func (p *Problem) Error() string {
	if p.RuleID != "" {
		return fmt.Sprintf("page %s: rule %s: %s", p.PageID, p.RuleID, p.Msg)
	}
	return fmt.Sprintf("page %s: %s", p.PageID, p.Msg)
}

// Validate checks a survey definition before it is published: page and
// component ids are unique, every condition and skip rule parses, and every
// field or target they reference exists. The engine itself tolerates all of
// these; Validate exists so authors hear about them up front.
//
// The returned error joins one *Problem per finding.
func Validate(pages []domain.Page) error {
	var problems []error
	add := func(pageID, ruleID, format string, args ...any) {
		problems = append(problems, &Problem{PageID: pageID, RuleID: ruleID, Msg: fmt.Sprintf(format, args...)})
	}

	pageIDs := make(map[string]bool, len(pages))
	components := map[string]bool{}
	for i, p := range pages {
		if p.ID == "" {
			add(fmt.Sprintf("#%d", i), "", "missing id")
		} else if pageIDs[p.ID] {
			add(p.ID, "", "duplicate page id")
		}
		pageIDs[p.ID] = true
		for _, c := range p.Components {
			if c.ID == "" {
				add(p.ID, "", "component without id")
				continue
			}
			if components[c.ID] {
				add(p.ID, "", "duplicate component id %q", c.ID)
			}
			components[c.ID] = true
		}
	}

	for _, p := range pages {
		for _, c := range p.Conditions() {
			switch c.Operator {
			case domain.OpEquals, domain.OpNotEquals, domain.OpContains,
				domain.OpGreaterThan, domain.OpLessThan:
			case domain.OpIn, domain.OpNotIn:
				if _, ok := list(c.Value); !ok {
					add(p.ID, c.ID, "operator %s needs a list value", c.Operator)
				}
			default:
				add(p.ID, c.ID, "unknown operator %q", c.Operator)
			}
			if !components[c.Field] {
				add(p.ID, c.ID, "field %q is not a component", c.Field)
			}
			switch c.Action {
			case domain.ActionShow, domain.ActionHide:
				if !components[c.Target] {
					add(p.ID, c.ID, "%s target %q is not a component", c.Action, c.Target)
				}
			case domain.ActionSkipTo:
				if !pageIDs[c.Target] {
					add(p.ID, c.ID, "skip_to target %q is not a page", c.Target)
				}
			case domain.ActionEndSurvey:
			default:
				add(p.ID, c.ID, "unknown action %q", c.Action)
			}
		}
		for _, r := range p.SkipRules() {
			if !pageIDs[r.TargetPageID] {
				add(p.ID, r.ID, "target %q is not a page", r.TargetPageID)
			}
			x, err := ParseExpr(r.Condition)
			if err != nil {
				add(p.ID, r.ID, "%v", err)
				continue
			}
			for _, f := range Fields(x) {
				if !components[f] {
					add(p.ID, r.ID, "expression reads unknown field %q", f)
				}
			}
		}
	}
	return errors.Join(problems...)
}

// Problems unpacks the findings of a Validate error.
func Problems(err error) []*Problem {
	var out []*Problem
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var p *Problem
			if errors.As(e, &p) {
				out = append(out, p)
			}
		}
		return out
	}
	var p *Problem
	if errors.As(err, &p) {
		out = append(out, p)
	}
	return out
}
