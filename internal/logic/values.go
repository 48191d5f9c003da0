package logic

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"surveys/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Answer values
// ─────────────────────────────────────────────────────────────
//
// Answers arrive as whatever the renderer produced or JSON decoded into:
// string, float64 (or any Go number), bool, nil, []any. A missing key is
// distinct from an explicit nil and is represented by undefined.

type undefinedValue struct{}

// undefined marks a response key that was never set.
var undefined = undefinedValue{}

func (undefinedValue) String() string { return "undefined" }

// lookup reads an answer, returning undefined for unknown keys.
func lookup(r domain.Responses, id string) any {
	v, ok := r[id]
	if !ok {
		return undefined
	}
	return v
}

// answered reports whether a value satisfies a required field:
// anything except missing, nil and the empty string.
func answered(v any) bool {
	switch x := v.(type) {
	case undefinedValue, nil:
		return false
	case string:
		return x != ""
	}
	return true
}

func isNullish(v any) bool {
	switch v.(type) {
	case undefinedValue, nil:
		return true
	}
	return false
}

// number widens any Go numeric type to float64.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// list returns the elements of any slice or array value.
func list(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case nil, undefinedValue:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toNumber coerces a value to a number the way the survey builder's
// expression language always has: nil is 0, missing is NaN, booleans are
// 0/1, blank strings are 0 and unparsable strings are NaN.
func toNumber(v any) float64 {
	if n, ok := number(v); ok {
		return n
	}
	switch x := v.(type) {
	case undefinedValue:
		return math.NaN()
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	if items, ok := list(v); ok {
		switch len(items) {
		case 0:
			return 0
		case 1:
			return toNumber(toString(items[0]))
		}
	}
	return math.NaN()
}

// toString renders a value as text, used by the contains operator.
func toString(v any) string {
	if n, ok := number(v); ok {
		return formatNumber(n)
	}
	switch x := v.(type) {
	case undefinedValue:
		return "undefined"
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if items, ok := list(v); ok {
		parts := make([]string, len(items))
		for i, it := range items {
			if isNullish(it) {
				continue
			}
			parts[i] = toString(it)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truthy(v any) bool {
	if n, ok := number(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	switch x := v.(type) {
	case undefinedValue, nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	return true
}

// strictEqual compares without coercion. Numbers compare by value
// regardless of Go type; lists and objects are never equal to each other.
func strictEqual(a, b any) bool {
	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an == bn
	}
	switch x := a.(type) {
	case undefinedValue:
		_, ok := b.(undefinedValue)
		return ok
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

// sameValueZero is strictEqual except NaN equals NaN; list membership uses it.
func sameValueZero(a, b any) bool {
	an, aok := number(a)
	bn, bok := number(b)
	if aok && bok && math.IsNaN(an) && math.IsNaN(bn) {
		return true
	}
	return strictEqual(a, b)
}

// looseEqual is == with coercion: nil and missing equal each other, lists
// compare by their text form, and numbers compare against numeric strings
// and booleans.
func looseEqual(a, b any) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	_, al := list(a)
	_, bl := list(b)
	switch {
	case al && bl:
		return false
	case al:
		return looseEqual(toString(a), b)
	case bl:
		return looseEqual(a, toString(b))
	}
	if _, ok := a.(bool); ok {
		return looseEqual(toNumber(a), b)
	}
	if _, ok := b.(bool); ok {
		return looseEqual(a, toNumber(b))
	}
	_, an := number(a)
	_, bn := number(b)
	_, aIsStr := a.(string)
	_, bIsStr := b.(string)
	if (an && bIsStr) || (aIsStr && bn) {
		return toNumber(a) == toNumber(b)
	}
	return strictEqual(a, b)
}

// compareOrder orders two values for < and >. Two strings compare
// lexically; anything else compares numerically. ok is false when either
// side is NaN, which makes every relational comparison false.
func compareOrder(a, b any) (cmp int, ok bool) {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}
	an, bn := toNumber(a), toNumber(b)
	if math.IsNaN(an) || math.IsNaN(bn) {
		return 0, false
	}
	switch {
	case an < bn:
		return -1, true
	case an > bn:
		return 1, true
	}
	return 0, true
}
