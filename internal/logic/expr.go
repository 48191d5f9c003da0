package logic

import (
	"fmt"

	"surveys/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Skip rule expressions
// ─────────────────────────────────────────────────────────────
//
// Skip rules are written as small boolean expressions over the response
// snapshot, e.g.
//
//	responses.Q1 === 'hello' && (responses.age >= 18 || !responses.minor)
//
// They are parsed once into the tree below and evaluated by walking it.
// Nothing in the tree can call functions or reach outside the responses.

// Expr is a parsed boolean expression.
type Expr interface {
	Eval(r domain.Responses) bool
	String() string
}

// Operand is a leaf: either a response variable or a literal.
type Operand interface {
	resolve(r domain.Responses) any
	String() string
}

// Comparator is a binary comparison between two operands.
type Comparator string

const (
	CmpLooseEq   Comparator = "=="
	CmpStrictEq  Comparator = "==="
	CmpLooseNeq  Comparator = "!="
	CmpStrictNeq Comparator = "!=="
	CmpGt        Comparator = ">"
	CmpGte       Comparator = ">="
	CmpLt        Comparator = "<"
	CmpLte       Comparator = "<="
)

// Variable reads responses[Field].
type Variable struct {
	Field string
}

func (v Variable) resolve(r domain.Responses) any { return lookup(r, v.Field) }
func (v Variable) String() string               { return fmt.Sprintf("responses[%q]", v.Field) }

// Literal is a constant: string, float64, bool, nil, or undefined.
type Literal struct {
	Value any
}

func (l Literal) resolve(domain.Responses) any { return l.Value }

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return toString(l.Value)
}

// Comparison is the { variable, comparator, literal } node.
type Comparison struct {
	Left  Operand
	Op    Comparator
	Right Operand
}

func (c Comparison) Eval(r domain.Responses) bool {
	a, b := c.Left.resolve(r), c.Right.resolve(r)
	switch c.Op {
	case CmpStrictEq:
		return strictEqual(a, b)
	case CmpStrictNeq:
		return !strictEqual(a, b)
	case CmpLooseEq:
		return looseEqual(a, b)
	case CmpLooseNeq:
		return !looseEqual(a, b)
	}
	cmp, ok := compareOrder(a, b)
	if !ok {
		return false
	}
	switch c.Op {
	case CmpGt:
		return cmp > 0
	case CmpGte:
		return cmp >= 0
	case CmpLt:
		return cmp < 0
	case CmpLte:
		return cmp <= 0
	}
	return false
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Truthy is a bare operand used as a condition.
type Truthy struct {
	Operand Operand
}

func (t Truthy) Eval(r domain.Responses) bool { return truthy(t.Operand.resolve(r)) }
func (t Truthy) String() string               { return t.Operand.String() }

type Not struct {
	X Expr
}

func (n Not) Eval(r domain.Responses) bool { return !n.X.Eval(r) }
func (n Not) String() string               { return "!(" + n.X.String() + ")" }

type And struct {
	Left, Right Expr
}

func (a And) Eval(r domain.Responses) bool { return a.Left.Eval(r) && a.Right.Eval(r) }
func (a And) String() string               { return "(" + a.Left.String() + " && " + a.Right.String() + ")" }

type Or struct {
	Left, Right Expr
}

func (o Or) Eval(r domain.Responses) bool { return o.Left.Eval(r) || o.Right.Eval(r) }
func (o Or) String() string               { return "(" + o.Left.String() + " || " + o.Right.String() + ")" }

// Fields returns the distinct response ids an expression reads, in order of
// first appearance.
func Fields(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	add := func(op Operand) {
		if v, ok := op.(Variable); ok && !seen[v.Field] {
			seen[v.Field] = true
			out = append(out, v.Field)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Comparison:
			add(n.Left)
			add(n.Right)
		case Truthy:
			add(n.Operand)
		case Not:
			walk(n.X)
		case And:
			walk(n.Left)
			walk(n.Right)
		case Or:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
	return out
}
