package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vantutran2k1/elements/pkg/queryparser"
)

// Compiler is the narrow contract a storage backend implements to turn
// parsed clauses into its native filter representation F.
type Compiler[F any] interface {
	Compile(clauses []queryparser.Clause) (F, error)
}

// Term is one validated, typed comparison. Value is nil only for nullable
// fields compared with = or !=.
type Term[T any] struct {
	Field    Field[T]
	Operator queryparser.Operator
	Value    any
}

// Expression is a conjunction of terms. The zero Expression matches every
// entity.
type Expression[T any] struct {
	Terms []Term[T]
}

func (e Expression[T]) IsEmpty() bool { return len(e.Terms) == 0 }

// And returns a new expression holding the terms of both.
func (e Expression[T]) And(other Expression[T]) Expression[T] {
	terms := make([]Term[T], 0, len(e.Terms)+len(other.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, other.Terms...)
	return Expression[T]{Terms: terms}
}

func (e Expression[T]) String() string {
	parts := make([]string, len(e.Terms))
	for i, t := range e.Terms {
		parts[i] = t.Field.Name + string(t.Operator) + formatValue(t.Value)
	}
	return strings.Join(parts, " "+queryparser.Conjunction+" ")
}

// Eq builds a single equality term, for callers that filter by a known
// field without going through the parser.
func Eq[T any](f Field[T], v any) Term[T] {
	return Term[T]{Field: f, Operator: queryparser.OpEq, Value: v}
}

func Where[T any](terms ...Term[T]) Expression[T] {
	return Expression[T]{Terms: terms}
}

// Compile resolves every clause against catalog and coerces its value. It
// stops at the first failing clause.
func Compile[T any](clauses []queryparser.Clause, catalog *Catalog[T]) (Expression[T], error) {
	terms := make([]Term[T], 0, len(clauses))
	for _, c := range clauses {
		f, err := catalog.Resolve(c.Field)
		if err != nil {
			return Expression[T]{}, err
		}

		if !c.Operator.Valid() {
			return Expression[T]{}, &ValueError{
				Field:    f.Name,
				Value:    c.Value,
				Operator: c.Operator,
				Err:      errors.New("unsupported operator"),
			}
		}

		v, err := f.Coerce(c.Value)
		if err != nil {
			return Expression[T]{}, err
		}

		if v == nil && c.Operator != queryparser.OpEq && c.Operator != queryparser.OpNe {
			return Expression[T]{}, &ValueError{
				Field:    f.Name,
				Value:    c.Value,
				Operator: c.Operator,
				Err:      fmt.Errorf("null only supports %s and %s", queryparser.OpEq, queryparser.OpNe),
			}
		}

		terms = append(terms, Term[T]{Field: f, Operator: c.Operator, Value: v})
	}

	return Expression[T]{Terms: terms}, nil
}

type expressionCompiler[T any] struct {
	catalog *Catalog[T]
}

// NewCompiler returns the backend-agnostic compiler producing Expressions.
func NewCompiler[T any](catalog *Catalog[T]) Compiler[Expression[T]] {
	return expressionCompiler[T]{catalog: catalog}
}

func (c expressionCompiler[T]) Compile(clauses []queryparser.Clause) (Expression[T], error) {
	return Compile(clauses, c.catalog)
}

// CompileString parses and compiles a canonical query string in one step.
func CompileString[F any](c Compiler[F], query string) (F, error) {
	clauses, err := queryparser.Parse(query)
	if err != nil {
		var zero F
		return zero, err
	}
	return c.Compile(clauses)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Null
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
