package filter

import (
	"cmp"
	"time"

	"github.com/vantutran2k1/elements/pkg/queryparser"
)

// Match evaluates the expression against v in memory. Null handling follows
// SQL: a missing value only satisfies "= null", and "!= null" only matches
// present values.
func (e Expression[T]) Match(v T) bool {
	for _, t := range e.Terms {
		if !t.match(v) {
			return false
		}
	}
	return true
}

// Predicate adapts the expression to a plain function.
func (e Expression[T]) Predicate() func(T) bool {
	return e.Match
}

func (t Term[T]) match(v T) bool {
	actual := t.Field.Get(v)

	if t.Value == nil {
		switch t.Operator {
		case queryparser.OpEq:
			return actual == nil
		case queryparser.OpNe:
			return actual != nil
		}
		return false
	}
	if actual == nil {
		return false
	}

	c, ok := compare(actual, t.Value)
	if !ok {
		return false
	}

	switch t.Operator {
	case queryparser.OpEq:
		return c == 0
	case queryparser.OpNe:
		return c != 0
	case queryparser.OpGt:
		return c > 0
	case queryparser.OpGe:
		return c >= 0
	case queryparser.OpLt:
		return c < 0
	case queryparser.OpLe:
		return c <= 0
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case string:
		y, ok := b.(string)
		return cmp.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	}
	return 0, false
}
