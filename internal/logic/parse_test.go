package logic_test

import (
	"errors"
	"reflect"
	"testing"

	"surveys/internal/domain"
	"surveys/internal/logic"
)

func TestParseExpr_Evaluates(t *testing.T) {
	r := domain.Responses{
		"Q1":    "hello",
		"age":   21,
		"minor": false,
		"score": "7",
		"tags":  []any{"a", "b"},
		"blank": "",
		"none":  nil,
		"my-id": "dash",
	}

	cases := []struct {
		src  string
		want bool
	}{
		{`responses.Q1 === 'hello'`, true},
		{`responses.Q1 === "Hello"`, false},
		{`responses.Q1 !== 'x'`, true},
		{`responses.age >= 18`, true},
		{`responses.age < 18`, false},
		{`responses.score == 7`, true},
		{`responses.score === 7`, false},
		{`responses.age > -1.5e1`, true},
		{`responses.minor`, false},
		{`!responses.minor`, true},
		{`!!responses.Q1`, true},
		{`responses.missing`, false},
		{`responses.missing === undefined`, true},
		{`responses.none == undefined`, true},
		{`responses.none === undefined`, false},
		{`responses.none === null`, true},
		{`responses.blank`, false},
		{`responses.tags`, true},
		{`responses.tags == 'a,b'`, true},
		{`responses["my-id"] === 'dash'`, true},
		{`responses.Q1 === 'hello' && (responses.age >= 30 || !responses.minor)`, true},
		{`responses.Q1 === 'nope' || responses.age === 21`, true},
		{`!(responses.age > 18 && responses.Q1 === 'hello')`, false},
		{`responses.Q1 > 'a'`, true},
		{`responses.Q1 > 5`, false},
		{`true`, true},
		{`false || null`, false},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			x, err := logic.ParseExpr(tc.src)
			if err != nil {
				t.Fatalf("ParseExpr: %v", err)
			}
			if got := x.Eval(r); got != tc.want {
				t.Errorf("expected %v, got %v (tree %s)", tc.want, got, x)
			}
		})
	}
}

func TestParseExpr_Rejects(t *testing.T) {
	cases := []string{
		``,
		`   `,
		`alert('x')`,
		`window.location`,
		`responses.Q1 = 'x'`,
		`responses.Q1 ===`,
		`responses.`,
		`responses[Q1]`,
		`responses`,
		`(responses.a`,
		`'unterminated`,
		`responses.a === 1 2`,
		`!responses.a === 'b'`,
		`responses.a; drop`,
		`responses.a + 1`,
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := logic.ParseExpr(src)
			if err == nil {
				t.Fatal("expected parse error")
			}
			var pe *logic.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestFields(t *testing.T) {
	x, err := logic.ParseExpr(`responses.a === 1 && (responses.b || !responses.a) || responses["c d"] > responses.b`)
	if err != nil {
		t.Fatal(err)
	}
	if got := logic.Fields(x); !reflect.DeepEqual(got, []string{"a", "b", "c d"}) {
		t.Errorf("unexpected fields %v", got)
	}
}
