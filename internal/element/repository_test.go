package element_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/element/memstore"
	"github.com/vantutran2k1/elements/internal/element/sqlite"
	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/queryparser"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)

type backend struct {
	name string
	open func(t *testing.T, uniqueType bool) element.Store
}

var backends = []backend{
	{name: "memory", open: func(t *testing.T, _ bool) element.Store {
		return memstore.New()
	}},
	{name: "sqlite", open: func(t *testing.T, uniqueType bool) element.Store {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "elements.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.EnsureSchema(context.Background(), uniqueType))
		return s
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repo *element.Repository)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := element.NewRepository(b.open(t, false), element.WithClock(func() time.Time { return fixedNow }))
			fn(t, repo)
		})
	}
}

func ptr(v int64) *int64 { return &v }

func mustSave(t *testing.T, repo *element.Repository, e element.Element) element.Element {
	t.Helper()
	saved, err := repo.Save(context.Background(), e)
	require.NoError(t, err)
	return saved
}

func ids(elements []element.Element) []int64 {
	out := make([]int64, len(elements))
	for i, e := range elements {
		out[i] = e.ID
	}
	return out
}

func TestRepositoryScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()

		root := mustSave(t, repo, element.Element{OwnerID: "OWN1", Type: "TEST", Name: "Root"})
		assert.NotZero(t, root.ID)
		assert.Equal(t, fixedNow.Truncate(time.Microsecond), root.Created)

		child := mustSave(t, repo, element.Element{ParentID: ptr(root.ID), OwnerID: "OWN1", Type: "TEST", Name: "C1"})

		got, err := repo.Query(ctx, "type=TEST")
		require.NoError(t, err)
		assert.Equal(t, []int64{root.ID, child.ID}, ids(got))

		got, err = repo.Query(ctx, "parentId="+formatID(root.ID))
		require.NoError(t, err)
		assert.Equal(t, []int64{child.ID}, ids(got))

		_, err = repo.DeleteByID(ctx, root.ID)
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		n, err := repo.DeleteByID(ctx, child.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = repo.DeleteByID(ctx, root.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestRepositoryEmptyQueryMatchesFindAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "A", Name: "a"})
		mustSave(t, repo, element.Element{ParentID: ptr(root.ID), OwnerID: "o", Type: "B", Name: "b"})

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)

		for _, q := range []string{"", "   "} {
			got, err := repo.Query(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, all, got)
		}

		got, err := repo.FindWhere(ctx, element.Filter{})
		require.NoError(t, err)
		assert.Equal(t, all, got)
	})
}

func TestRepositorySingleClauseIsExactSubset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		a := mustSave(t, repo, element.Element{OwnerID: "o1", Type: "TEST", Name: "a"})
		mustSave(t, repo, element.Element{OwnerID: "o2", Type: "OTHER", Name: "b"})
		c := mustSave(t, repo, element.Element{ParentID: ptr(a.ID), OwnerID: "o1", Type: "TEST", Name: "c"})

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)

		for _, q := range []string{"type=TEST", "ownerId=o2", "name=c", "parentId=null", "id>=2"} {
			f, err := repo.Compile(q)
			require.NoError(t, err)

			var want []int64
			for _, e := range all {
				if f.Match(e) {
					want = append(want, e.ID)
				}
			}

			got, err := repo.Query(ctx, q)
			require.NoError(t, err, q)
			assert.Equal(t, want, ids(got), q)
		}

		got, err := repo.Query(ctx, "type=TEST")
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, c.ID}, ids(got))
	})
}

func TestRepositoryQueryByCreated(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		e := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "n"})

		got, err := repo.Query(ctx, "created="+e.Created.Format(time.RFC3339Nano))
		require.NoError(t, err)
		assert.Equal(t, []int64{e.ID}, ids(got))

		got, err = repo.Query(ctx, "created>2024-03-01T10:00:01Z")
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = repo.Query(ctx, "created<2024-03-02")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestRepositoryQueryErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()

		_, err := repo.Query(ctx, "colour=red")
		assert.ErrorIs(t, err, filter.ErrUnknownField)
		assert.NotErrorIs(t, err, filter.ErrBadValue)

		_, err = repo.Query(ctx, "colour=abc && id=abc")
		assert.ErrorIs(t, err, filter.ErrUnknownField)

		_, err = repo.Query(ctx, "id=abc")
		assert.ErrorIs(t, err, filter.ErrBadValue)

		_, err = repo.Query(ctx, "name")
		assert.ErrorIs(t, err, queryparser.ErrSyntax)

		_, err = repo.Query(ctx, "name=a=b")
		assert.ErrorIs(t, err, queryparser.ErrSyntax)
	})
}

func TestRepositoryFindByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		e := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "n"})

		got, err := repo.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e, got)

		_, err = repo.FindByID(ctx, e.ID+100)
		assert.ErrorIs(t, err, element.ErrNotFound)
	})
}

func TestRepositorySaveMissingParent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		_, err := repo.Save(context.Background(), element.Element{ParentID: ptr(42), OwnerID: "o", Type: "T", Name: "n"})
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		var ie *element.IntegrityError
		require.ErrorAs(t, err, &ie)
		assert.Contains(t, ie.Reason, "42")
	})
}

func TestRepositorySaveDuplicateName(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "dup"})

		_, err := repo.Save(ctx, element.Element{OwnerID: "x", Type: "U", Name: "dup"})
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		_, err = repo.Save(ctx, element.Element{ParentID: ptr(root.ID), OwnerID: "o", Type: "U", Name: "dup"})
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		// Re-saving an element under its own name is not a conflict.
		root.Type = "T2"
		_, err = repo.Save(ctx, root)
		assert.NoError(t, err)
	})
}

func TestRepositoryUniqueType(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := element.NewRepository(b.open(t, true), element.WithUniqueType(true))

			root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "TEST", Name: "a"})

			_, err := repo.Save(ctx, element.Element{OwnerID: "x", Type: "TEST", Name: "b"})
			assert.ErrorIs(t, err, element.ErrIntegrityViolation)

			_, err = repo.Save(ctx, element.Element{ParentID: ptr(root.ID), OwnerID: "o", Type: "TEST", Name: "c"})
			assert.ErrorIs(t, err, element.ErrIntegrityViolation)

			_, err = repo.Save(ctx, element.Element{OwnerID: "x", Type: "OTHER", Name: "b"})
			assert.NoError(t, err)
		})
	}
}

func TestRepositorySaveOwnerMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		root := mustSave(t, repo, element.Element{OwnerID: "o1", Type: "T", Name: "root"})

		_, err := repo.Save(context.Background(), element.Element{ParentID: ptr(root.ID), OwnerID: "o2", Type: "T", Name: "child"})
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)
	})
}

func TestRepositoryDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "root"})
		child := mustSave(t, repo, element.Element{ParentID: ptr(root.ID), OwnerID: "o", Type: "T", Name: "child"})

		_, err := repo.DeleteByID(ctx, root.ID)
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		_, err = repo.FindByID(ctx, root.ID)
		assert.NoError(t, err)

		n, err := repo.DeleteByID(ctx, child.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = repo.FindByID(ctx, child.ID)
		assert.ErrorIs(t, err, element.ErrNotFound)

		n, err = repo.DeleteByID(ctx, child.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRepositoryUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "root"})
		other := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "other"})

		update := element.Element{ID: other.ID, ParentID: ptr(root.ID), OwnerID: "o", Type: "T2", Name: "renamed"}
		saved, err := repo.Save(ctx, update)
		require.NoError(t, err)
		assert.Equal(t, other.Created, saved.Created)
		assert.Equal(t, "renamed", saved.Name)

		got, err := repo.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, saved, got)

		_, err = repo.Save(ctx, element.Element{ID: 999, OwnerID: "o", Type: "T", Name: "ghost"})
		assert.ErrorIs(t, err, element.ErrNotFound)
	})
}

func TestRepositoryUpdateRejectsCycles(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		a := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "a"})
		b := mustSave(t, repo, element.Element{ParentID: ptr(a.ID), OwnerID: "o", Type: "T", Name: "b"})
		c := mustSave(t, repo, element.Element{ParentID: ptr(b.ID), OwnerID: "o", Type: "T", Name: "c"})

		a.ParentID = ptr(c.ID)
		_, err := repo.Save(ctx, a)
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		a.ParentID = ptr(a.ID)
		_, err = repo.Save(ctx, a)
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)
	})
}

func TestRepositoryOwnerChange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo *element.Repository) {
		ctx := context.Background()
		root := mustSave(t, repo, element.Element{OwnerID: "o", Type: "T", Name: "root"})
		child := mustSave(t, repo, element.Element{ParentID: ptr(root.ID), OwnerID: "o", Type: "T", Name: "child"})

		root.OwnerID = "other"
		_, err := repo.Save(ctx, root)
		assert.ErrorIs(t, err, element.ErrIntegrityViolation)

		child.ParentID = nil
		child.OwnerID = "other"
		_, err = repo.Save(ctx, child)
		require.NoError(t, err)

		_, err = repo.Save(ctx, root)
		assert.NoError(t, err)
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
