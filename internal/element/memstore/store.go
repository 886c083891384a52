// Package memstore is a process-local element store that evaluates filters
// with filter.Expression.Match. It enforces no constraints of its own; the
// repository checks every invariant before writing.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/vantutran2k1/elements/internal/element"
)

type Store struct {
	mu     sync.RWMutex
	rows   map[int64]element.Element
	nextID int64
}

func New() *Store {
	return &Store{rows: map[int64]element.Element{}}
}

func (s *Store) Get(ctx context.Context, id int64) (element.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{rows: s.rows}.Get(ctx, id)
}

func (s *Store) Find(ctx context.Context, f element.Filter) ([]element.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{rows: s.rows}.Find(ctx, f)
}

func (s *Store) Count(ctx context.Context, f element.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{rows: s.rows}.Count(ctx, f)
}

// InTx runs fn against a private copy of the rows and publishes the copy
// only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(element.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{view: view{rows: maps.Clone(s.rows)}, nextID: s.nextID}
	if err := fn(t); err != nil {
		return err
	}

	s.rows = t.rows
	s.nextID = t.nextID
	return nil
}

func (s *Store) Close() error { return nil }

type view struct {
	rows map[int64]element.Element
}

func (v view) Get(_ context.Context, id int64) (element.Element, error) {
	e, ok := v.rows[id]
	if !ok {
		return element.Element{}, element.ErrNotFound
	}
	return e, nil
}

func (v view) Find(_ context.Context, f element.Filter) ([]element.Element, error) {
	ids := slices.Sorted(maps.Keys(v.rows))

	elements := []element.Element{}
	for _, id := range ids {
		if e := v.rows[id]; f.Match(e) {
			elements = append(elements, e)
		}
	}
	return elements, nil
}

func (v view) Count(_ context.Context, f element.Filter) (int64, error) {
	var n int64
	for _, e := range v.rows {
		if f.Match(e) {
			n++
		}
	}
	return n, nil
}

type tx struct {
	view
	nextID int64
}

func (t *tx) Insert(_ context.Context, e element.Element) (int64, error) {
	t.nextID++
	e.ID = t.nextID
	t.rows[e.ID] = e
	return e.ID, nil
}

func (t *tx) Update(_ context.Context, e element.Element) (int64, error) {
	old, ok := t.rows[e.ID]
	if !ok {
		return 0, nil
	}
	e.Created = old.Created
	t.rows[e.ID] = e
	return 1, nil
}

func (t *tx) Delete(_ context.Context, id int64) (int64, error) {
	if _, ok := t.rows[id]; !ok {
		return 0, nil
	}
	delete(t.rows, id)
	return 1, nil
}

var _ element.Store = (*Store)(nil)
