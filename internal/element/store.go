package element

import (
	"context"
)

// Reader is the read side shared by stores and their transactions.
type Reader interface {
	// Get returns ErrNotFound when no row has the id.
	Get(ctx context.Context, id int64) (Element, error)
	// Find returns matching rows ordered by id. An empty filter matches all.
	Find(ctx context.Context, f Filter) ([]Element, error)
	Count(ctx context.Context, f Filter) (int64, error)
}

// Tx is one atomic unit of work. Constraint failures reported by the
// backend must come back as *IntegrityError.
type Tx interface {
	Reader
	// Insert stores e, ignoring e.ID, and returns the assigned id.
	Insert(ctx context.Context, e Element) (int64, error)
	// Update replaces parent, owner, type and name of row e.ID.
	Update(ctx context.Context, e Element) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

type Store interface {
	Reader
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error
}
