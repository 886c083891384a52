package element

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/queryparser"
)

const tracerName = "github.com/vantutran2k1/elements/internal/element"

type Option func(*Repository)

// WithClock overrides the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithUniqueType makes type unique across all elements, in addition to name.
func WithUniqueType(unique bool) Option {
	return func(r *Repository) {
		r.uniqueType = unique
	}
}

// Repository is the single entry point for reading and writing elements.
// Every write runs in one store transaction together with its checks.
type Repository struct {
	store      Store
	compiler   filter.Compiler[Filter]
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
	uniqueType bool
}

func NewRepository(store Store, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		compiler: filter.NewCompiler(Catalog),
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) FindAll(ctx context.Context) ([]Element, error) {
	return r.FindWhere(ctx, Filter{})
}

func (r *Repository) FindByID(ctx context.Context, id int64) (Element, error) {
	ctx, span := r.tracer.Start(ctx, "element.FindByID", trace.WithAttributes(attribute.Int64("element.id", id)))
	defer span.End()

	e, err := r.store.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return Element{}, err
	}
	return e, nil
}

// FindWhere returns the elements matching f ordered by id.
func (r *Repository) FindWhere(ctx context.Context, f Filter) ([]Element, error) {
	ctx, span := r.tracer.Start(ctx, "element.FindWhere", trace.WithAttributes(attribute.String("element.filter", f.String())))
	defer span.End()

	elements, err := r.store.Find(ctx, f)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("find elements: %w", err)
	}
	span.SetAttributes(attribute.Int("element.count", len(elements)))
	return elements, nil
}

// Query parses and compiles a canonical query string, then runs it. Parse
// and compile failures are returned unwrapped so callers can classify them.
func (r *Repository) Query(ctx context.Context, query string) ([]Element, error) {
	f, err := r.Compile(query)
	if err != nil {
		r.logger.DebugContext(ctx, "rejected query", "query", query, "error", err)
		return nil, err
	}
	return r.FindWhere(ctx, f)
}

func (r *Repository) Compile(query string) (Filter, error) {
	clauses, err := queryparser.Parse(query)
	if err != nil {
		return Filter{}, err
	}
	return r.compiler.Compile(clauses)
}

// Save inserts e when its id is zero and updates it otherwise. On update the
// stored created timestamp is kept and a missing row yields ErrNotFound.
func (r *Repository) Save(ctx context.Context, e Element) (Element, error) {
	ctx, span := r.tracer.Start(ctx, "element.Save", trace.WithAttributes(attribute.Int64("element.id", e.ID)))
	defer span.End()

	err := r.store.InTx(ctx, func(tx Tx) error {
		if e.ID == 0 {
			return r.insert(ctx, tx, &e)
		}
		return r.update(ctx, tx, &e)
	})
	if err != nil {
		recordError(span, err)
		return Element{}, err
	}

	span.SetAttributes(attribute.Int64("element.id", e.ID))
	return e, nil
}

func (r *Repository) insert(ctx context.Context, tx Tx, e *Element) error {
	if err := r.checkInvariants(ctx, tx, *e, nil); err != nil {
		return err
	}

	e.Created = r.now().UTC().Truncate(time.Microsecond)
	id, err := tx.Insert(ctx, *e)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (r *Repository) update(ctx context.Context, tx Tx, e *Element) error {
	existing, err := tx.Get(ctx, e.ID)
	if err != nil {
		return err
	}
	if err := r.checkInvariants(ctx, tx, *e, &existing); err != nil {
		return err
	}

	e.Created = existing.Created
	n, err := tx.Update(ctx, *e)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes an element without children and reports how many rows
// went away; deleting a missing id is not an error.
func (r *Repository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "element.DeleteByID", trace.WithAttributes(attribute.Int64("element.id", id)))
	defer span.End()

	var deleted int64
	err := r.store.InTx(ctx, func(tx Tx) error {
		children, err := tx.Count(ctx, childrenOf(id))
		if err != nil {
			return err
		}
		if children > 0 {
			return integrity("element %d still has %d children", id, children)
		}

		deleted, err = tx.Delete(ctx, id)
		return err
	})
	if err != nil {
		recordError(span, err)
		return 0, err
	}
	return deleted, nil
}

// checkInvariants validates e against the rows visible in tx. existing is
// the stored version for updates and nil for inserts.
func (r *Repository) checkInvariants(ctx context.Context, tx Tx, e Element, existing *Element) error {
	if e.ParentID != nil {
		parent, err := tx.Get(ctx, *e.ParentID)
		if errors.Is(err, ErrNotFound) {
			return integrity("parent element %d does not exist", *e.ParentID)
		}
		if err != nil {
			return err
		}
		if parent.OwnerID != e.OwnerID {
			return integrity("owner %q differs from parent owner %q", e.OwnerID, parent.OwnerID)
		}
		if existing != nil {
			if err := checkAcyclic(ctx, tx, e.ID, parent); err != nil {
				return err
			}
		}
	}

	if existing != nil && existing.OwnerID != e.OwnerID {
		children, err := tx.Count(ctx, childrenOf(e.ID))
		if err != nil {
			return err
		}
		if children > 0 {
			return integrity("cannot change owner of element %d while it has children", e.ID)
		}
	}

	unique := []filter.Field[Element]{FieldName}
	if r.uniqueType {
		unique = append(unique, FieldType)
	}
	for _, f := range unique {
		taken := Where(filter.Eq(f, f.Get(e)))
		if e.ID != 0 {
			taken.Terms = append(taken.Terms, filter.Term[Element]{Field: FieldID, Operator: queryparser.OpNe, Value: e.ID})
		}

		n, err := tx.Count(ctx, taken)
		if err != nil {
			return err
		}
		if n > 0 {
			return integrity("%s %q is already in use", f.Name, f.Get(e))
		}
	}

	return nil
}

// checkAcyclic walks up from parent and fails if it reaches id.
func checkAcyclic(ctx context.Context, tx Tx, id int64, parent Element) error {
	seen := map[int64]bool{}
	for cur := parent; ; {
		if cur.ID == id {
			return integrity("element %d cannot be its own ancestor", id)
		}
		if cur.ParentID == nil || seen[cur.ID] {
			return nil
		}
		seen[cur.ID] = true

		next, err := tx.Get(ctx, *cur.ParentID)
		if err != nil {
			return err
		}
		cur = next
	}
}

func childrenOf(id int64) Filter {
	return Where(filter.Eq(FieldParentID, id))
}

// Where builds a filter from explicit terms.
func Where(terms ...filter.Term[Element]) Filter {
	return filter.Where(terms...)
}

func recordError(span trace.Span, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
