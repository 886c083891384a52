package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantutran2k1/elements/internal/element"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ELEMENTS_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("ELEMENTS_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)

	s := NewStore(pool)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.EnsureSchema(ctx, false))
	_, err = pool.Exec(ctx, "TRUNCATE elements RESTART IDENTITY")
	require.NoError(t, err)
	return s
}

func TestStoreScenario(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	repo := element.NewRepository(s)

	root, err := repo.Save(ctx, element.Element{OwnerID: "OWN1", Type: "TEST", Name: "Root"})
	require.NoError(t, err)
	assert.NotZero(t, root.ID)

	child, err := repo.Save(ctx, element.Element{ParentID: &root.ID, OwnerID: "OWN1", Type: "TEST", Name: "C1"})
	require.NoError(t, err)

	got, err := repo.Query(ctx, "type=TEST")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	fetched, err := repo.FindByID(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, root.Created.Equal(fetched.Created))

	_, err = repo.DeleteByID(ctx, root.ID)
	assert.ErrorIs(t, err, element.ErrIntegrityViolation)

	_, err = repo.DeleteByID(ctx, child.ID)
	require.NoError(t, err)
	_, err = repo.DeleteByID(ctx, root.ID)
	require.NoError(t, err)
}

func TestStoreMapsConstraintErrors(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	insert := func(e element.Element) error {
		return s.InTx(ctx, func(tx element.Tx) error {
			_, err := tx.Insert(ctx, e)
			return err
		})
	}

	require.NoError(t, insert(element.Element{OwnerID: "o", Type: "T", Name: "root", Created: time.Now()}))

	err := insert(element.Element{OwnerID: "o", Type: "T", Name: "root", Created: time.Now()})
	assert.ErrorIs(t, err, element.ErrIntegrityViolation)

	missing := int64(404)
	err = insert(element.Element{ParentID: &missing, OwnerID: "o", Type: "T", Name: "orphan", Created: time.Now()})
	assert.ErrorIs(t, err, element.ErrIntegrityViolation)
}
