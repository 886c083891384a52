// Package filter validates parsed query clauses against a closed catalog of
// fields and compiles them into backend-agnostic expressions.
package filter

import (
	"fmt"
)

type Type int

const (
	TypeString Type = iota
	TypeInt64
	TypeTime
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "integer"
	case TypeTime:
		return "timestamp"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Field describes one externally filterable field of T. Path is the
// backend accessor (a column name for SQL stores) and Get reads the same
// value from an in-memory T.
type Field[T any] struct {
	Name     string
	Path     string
	Type     Type
	Nullable bool
	Get      func(T) any
}

// Catalog is the closed set of filterable fields for one entity type. It is
// immutable once built.
type Catalog[T any] struct {
	entity string
	fields map[string]Field[T]
	order  []string
}

func NewCatalog[T any](entity string, fields ...Field[T]) (*Catalog[T], error) {
	c := &Catalog[T]{
		entity: entity,
		fields: make(map[string]Field[T], len(fields)),
		order:  make([]string, 0, len(fields)),
	}

	for _, f := range fields {
		switch {
		case f.Name == "":
			return nil, fmt.Errorf("%s catalog: field with empty name", entity)
		case f.Path == "":
			return nil, fmt.Errorf("%s catalog: field %q has no accessor path", entity, f.Name)
		case f.Get == nil:
			return nil, fmt.Errorf("%s catalog: field %q has no getter", entity, f.Name)
		}
		if _, dup := c.fields[f.Name]; dup {
			return nil, fmt.Errorf("%s catalog: duplicate field %q", entity, f.Name)
		}

		c.fields[f.Name] = f
		c.order = append(c.order, f.Name)
	}

	return c, nil
}

func MustCatalog[T any](entity string, fields ...Field[T]) *Catalog[T] {
	c, err := NewCatalog(entity, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog[T]) Entity() string { return c.entity }

func (c *Catalog[T]) Resolve(name string) (Field[T], error) {
	f, ok := c.fields[name]
	if !ok {
		return Field[T]{}, &UnknownFieldError{Entity: c.entity, Field: name}
	}
	return f, nil
}

// Fields returns the descriptors in declaration order.
func (c *Catalog[T]) Fields() []Field[T] {
	out := make([]Field[T], len(c.order))
	for i, name := range c.order {
		out[i] = c.fields[name]
	}
	return out
}

func (c *Catalog[T]) Names() []string {
	return append([]string(nil), c.order...)
}
