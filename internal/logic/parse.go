package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports where a skip rule expression stopped making sense.
type ParseError struct {
	Src string
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Src, e.Pos, e.Msg)
}

// ── Lexer ──────────────────────────────────────────────────

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// Longest operators first so "===" is not read as "==" + "=".
var operators = []string{
	"===", "!==", "==", "!=", ">=", "<=", "&&", "||",
	">", "<", "!", "(", ")", "[", "]", ".", "-",
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			f, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &ParseError{Src: src, Pos: start, Msg: fmt.Sprintf("bad number %q", src[start:i])}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: f, pos: start})
		case c == '\'' || c == '"':
			s, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i = next
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &ParseError{Src: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(src[i])
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return "", 0, &ParseError{Src: src, Pos: start, Msg: "unterminated string"}
}

// ── Parser ─────────────────────────────────────────────────
//
//	or      = and { "||" and }
//	and     = unary { "&&" unary }
//	unary   = "!" unary | "(" or ")" | operand [ comparator operand ]
//	operand = "responses" ( "." ident | "[" string|number "]" )
//	        | string | number | "-" number | true | false | null | undefined

type parser struct {
	src  string
	toks []token
	pos  int
}

// ParseExpr parses a skip rule expression.
func ParseExpr(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, p.errorf("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf("unexpected %q", t.text)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Src: p.src, Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.acceptOp("!") {
		// "!" binds to the next operand or group only; "!a === b" is
		// rejected below rather than silently regrouped.
		if t := p.peek(); t.kind == tokOp && (t.text == "!" || t.text == "(") {
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return Not{X: x}, nil
		}
		op, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Not{X: Truthy{Operand: op}}, nil
	}
	if p.acceptOp("(") {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.acceptOp(")") {
			return nil, p.errorf("expected \")\"")
		}
		return e, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	cmp, ok := p.comparator()
	if !ok {
		return Truthy{Operand: left}, nil
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Op: cmp, Right: right}, nil
}

func (p *parser) comparator() (Comparator, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	switch c := Comparator(t.text); c {
	case CmpLooseEq, CmpStrictEq, CmpLooseNeq, CmpStrictNeq, CmpGt, CmpGte, CmpLt, CmpLte:
		p.pos++
		return c, true
	}
	return "", false
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Literal{Value: t.text}, nil
	case tokNumber:
		return Literal{Value: t.num}, nil
	case tokOp:
		if t.text == "-" {
			if n := p.peek(); n.kind == tokNumber {
				p.pos++
				return Literal{Value: -n.num}, nil
			}
		}
		p.pos--
		return nil, p.errorf("unexpected %q", t.text)
	case tokIdent:
		switch t.text {
		case "true":
			return Literal{Value: true}, nil
		case "false":
			return Literal{Value: false}, nil
		case "null":
			return Literal{Value: nil}, nil
		case "undefined":
			return Literal{Value: undefined}, nil
		case "responses":
			return p.parseVariable()
		}
		p.pos--
		return nil, p.errorf("unknown identifier %q", t.text)
	}
	return nil, p.errorf("unexpected end of expression")
}

func (p *parser) parseVariable() (Operand, error) {
	if p.acceptOp(".") {
		t := p.peek()
		if t.kind != tokIdent {
			return nil, p.errorf("expected field name after \"responses.\"")
		}
		p.pos++
		return Variable{Field: t.text}, nil
	}
	if p.acceptOp("[") {
		t := p.peek()
		var field string
		switch t.kind {
		case tokString:
			field = t.text
		case tokNumber:
			field = formatNumber(t.num)
		default:
			return nil, p.errorf("expected quoted field name inside []")
		}
		p.pos++
		if !p.acceptOp("]") {
			return nil, p.errorf("expected \"]\"")
		}
		return Variable{Field: field}, nil
	}
	return nil, p.errorf("expected \".\" or \"[\" after responses")
}
