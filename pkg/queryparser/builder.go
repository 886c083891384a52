package queryparser

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultReserved is the parameter carrying a whole canonical query.
const DefaultReserved = "q"

// Param is one decoded query-string parameter, kept in request order.
type Param struct {
	Name  string
	Value string
}

// ParseParams decodes a raw URL query string without losing parameter order,
// which url.ParseQuery does not preserve.
func ParseParams(rawQuery string) ([]Param, error) {
	var params []Param
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}

		name, value, _ := strings.Cut(part, "=")
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrSyntax, name, err)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrSyntax, decodedName, err)
		}

		params = append(params, Param{Name: decodedName, Value: decodedValue})
	}
	return params, nil
}

type BuilderOption func(*Builder)

func WithReserved(name string) BuilderOption {
	return func(b *Builder) {
		b.reserved = name
	}
}

// Builder folds the two accepted request shapes into one canonical query
// string. When the reserved parameter is present its value wins and every
// other parameter is ignored; otherwise each parameter becomes a name=value
// clause in request order.
type Builder struct {
	reserved string
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{reserved: DefaultReserved}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Reserved() string { return b.reserved }

func (b *Builder) Build(params []Param) (string, error) {
	var (
		expressions []string
		clauses     []string
	)

	for _, p := range params {
		if p.Name == b.reserved {
			expressions = append(expressions, p.Value)
			continue
		}
		clause, err := directClause(p)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	switch {
	case len(expressions) > 1:
		return "", &AmbiguousQueryError{Param: b.reserved, Count: len(expressions)}
	case len(expressions) == 1:
		return expressions[0], nil
	}

	return strings.Join(clauses, " "+Conjunction+" "), nil
}

func (b *Builder) BuildRaw(rawQuery string) (string, error) {
	params, err := ParseParams(rawQuery)
	if err != nil {
		return "", err
	}
	return b.Build(params)
}

// directClause renders a name=value parameter as one clause. Text that would
// change how the canonical string splits into clauses is rejected instead of
// being reinterpreted.
func directClause(p Param) (string, error) {
	clause := p.Name + string(OpEq) + p.Value

	if i := strings.IndexAny(p.Name, "=!<>&"); i >= 0 {
		return "", &SyntaxError{
			Query:    clause,
			Fragment: clause,
			Offset:   i,
			Err:      fmt.Errorf("parameter name %q contains %q", p.Name, p.Name[i:i+1]),
		}
	}

	for _, forbidden := range []string{Conjunction, string(OpEq)} {
		if i := strings.Index(p.Value, forbidden); i >= 0 {
			return "", &SyntaxError{
				Query:    clause,
				Fragment: clause,
				Offset:   len(p.Name) + len(OpEq) + i,
				Err:      fmt.Errorf("value of parameter %q contains %q", p.Name, forbidden),
			}
		}
	}

	return clause, nil
}
