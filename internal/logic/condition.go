package logic

import (
	"strings"

	"surveys/internal/domain"
)

// evaluateCondition applies a condition's operator to the current answer
// for its field. Unknown operators are never satisfied.
func evaluateCondition(c domain.Condition, r domain.Responses) bool {
	v := lookup(r, c.Field)
	switch c.Operator {
	case domain.OpEquals:
		return strictEqual(v, c.Value)
	case domain.OpNotEquals:
		return !strictEqual(v, c.Value)
	case domain.OpContains:
		s := ""
		if truthy(v) {
			s = toString(v)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(toString(c.Value)))
	case domain.OpGreaterThan:
		return toNumber(v) > toNumber(c.Value)
	case domain.OpLessThan:
		return toNumber(v) < toNumber(c.Value)
	case domain.OpIn, domain.OpNotIn:
		items, ok := list(c.Value)
		if !ok {
			return false
		}
		found := false
		for _, it := range items {
			if sameValueZero(it, v) {
				found = true
				break
			}
		}
		if c.Operator == domain.OpIn {
			return found
		}
		return !found
	}
	return false
}

// visibleUnder reports whether a component passes every condition that
// targets it. A satisfied hide always wins over a satisfied show.
func visibleUnder(conds []domain.Condition, componentID string, r domain.Responses) bool {
	for _, c := range conds {
		if c.Target != componentID {
			continue
		}
		met := evaluateCondition(c, r)
		switch c.Action {
		case domain.ActionShow:
			if !met {
				return false
			}
		case domain.ActionHide:
			if met {
				return false
			}
		}
	}
	return true
}
