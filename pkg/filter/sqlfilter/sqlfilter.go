// Package sqlfilter renders filter expressions as squirrel predicates.
package sqlfilter

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/queryparser"
)

// ValueEncoder converts a coerced value into the representation a dialect
// stores for fields of type t.
type ValueEncoder func(t filter.Type, v any) any

type Option func(*options)

type options struct {
	encode ValueEncoder
}

func WithValueEncoder(enc ValueEncoder) Option {
	return func(o *options) {
		o.encode = enc
	}
}

// Renderer turns expressions over T into squirrel predicates on the fields'
// accessor paths.
type Renderer[T any] struct {
	opts options
}

func NewRenderer[T any](opts ...Option) *Renderer[T] {
	r := &Renderer[T]{}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// Render returns the conjunction of all terms. An empty expression renders
// as squirrel's portable true literal.
func (r *Renderer[T]) Render(expr filter.Expression[T]) (sq.Sqlizer, error) {
	and := make(sq.And, 0, len(expr.Terms))
	for _, t := range expr.Terms {
		pred, err := r.term(t)
		if err != nil {
			return nil, err
		}
		and = append(and, pred)
	}
	return and, nil
}

// Encode applies the dialect encoder to v.
func (r *Renderer[T]) Encode(t filter.Type, v any) any {
	if v == nil || r.opts.encode == nil {
		return v
	}
	return r.opts.encode(t, v)
}

func (r *Renderer[T]) term(t filter.Term[T]) (sq.Sqlizer, error) {
	col := t.Field.Path
	v := r.Encode(t.Field.Type, t.Value)

	switch t.Operator {
	case queryparser.OpEq:
		return sq.Eq{col: v}, nil
	case queryparser.OpNe:
		return sq.NotEq{col: v}, nil
	case queryparser.OpGt:
		return sq.Gt{col: v}, nil
	case queryparser.OpGe:
		return sq.GtOrEq{col: v}, nil
	case queryparser.OpLt:
		return sq.Lt{col: v}, nil
	case queryparser.OpLe:
		return sq.LtOrEq{col: v}, nil
	}
	return nil, fmt.Errorf("sqlfilter: unsupported operator %q on %s", t.Operator, t.Field.Name)
}

// Compiler compiles parsed clauses straight to a squirrel predicate.
type Compiler[T any] struct {
	catalog  *filter.Catalog[T]
	renderer *Renderer[T]
}

func NewCompiler[T any](catalog *filter.Catalog[T], opts ...Option) *Compiler[T] {
	return &Compiler[T]{
		catalog:  catalog,
		renderer: NewRenderer[T](opts...),
	}
}

func (c *Compiler[T]) Compile(clauses []queryparser.Clause) (sq.Sqlizer, error) {
	expr, err := filter.Compile(clauses, c.catalog)
	if err != nil {
		return nil, err
	}
	return c.renderer.Render(expr)
}

var _ filter.Compiler[sq.Sqlizer] = (*Compiler[struct{}])(nil)
