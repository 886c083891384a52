// Package postgres stores elements in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/element/sqlstmt"
	"github.com/vantutran2k1/elements/pkg/filter"
)

//go:embed schema.sql
var schemaSQL string

const uniqueTypeSQL = `CREATE UNIQUE INDEX IF NOT EXISTS elements_type_key ON elements (type)`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	reader
	pool *pgxpool.Pool
}

// Connect opens a pool on dsn and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		reader: reader{q: pool, stmt: sqlstmt.New(sqlstmt.Postgres)},
		pool:   pool,
	}
}

// EnsureSchema creates the elements table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context, uniqueType bool) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if uniqueType {
		if _, err := s.pool.Exec(ctx, uniqueTypeSQL); err != nil {
			return fmt.Errorf("create type index: %w", err)
		}
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(element.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(t pgx.Tx) error {
		return fn(&tx{reader{q: t, stmt: s.stmt}})
	})
	return mapError(err)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type reader struct {
	q    querier
	stmt *sqlstmt.Builder
}

func (r reader) Get(ctx context.Context, id int64) (element.Element, error) {
	elements, err := r.Find(ctx, element.Where(filter.Eq(element.FieldID, id)))
	if err != nil {
		return element.Element{}, err
	}
	if len(elements) == 0 {
		return element.Element{}, element.ErrNotFound
	}
	return elements[0], nil
}

func (r reader) Find(ctx context.Context, f element.Filter) ([]element.Element, error) {
	query, args, err := r.stmt.Select(f)
	if err != nil {
		return nil, err
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elements := []element.Element{}
	for rows.Next() {
		var e element.Element
		if err := rows.Scan(&e.ID, &e.ParentID, &e.OwnerID, &e.Type, &e.Name, &e.Created); err != nil {
			return nil, err
		}
		e.Created = e.Created.UTC()
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

func (r reader) Count(ctx context.Context, f element.Filter) (int64, error) {
	query, args, err := r.stmt.Count(f)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type tx struct {
	reader
}

func (t *tx) Insert(ctx context.Context, e element.Element) (int64, error) {
	query, args, err := t.stmt.Insert(e)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := t.q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (t *tx) Update(ctx context.Context, e element.Element) (int64, error) {
	query, args, err := t.stmt.Update(e)
	if err != nil {
		return 0, err
	}
	return t.exec(ctx, query, args)
}

func (t *tx) Delete(ctx context.Context, id int64) (int64, error) {
	query, args, err := t.stmt.Delete(id)
	if err != nil {
		return 0, err
	}
	return t.exec(ctx, query, args)
}

func (t *tx) exec(ctx context.Context, query string, args []any) (int64, error) {
	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// mapError turns integrity constraint violations (SQLSTATE class 23) into
// element integrity errors.
func mapError(err error) error {
	var integrityErr *element.IntegrityError
	if errors.As(err, &integrityErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		reason := "constraint violated"
		if pgErr.ConstraintName != "" {
			reason = fmt.Sprintf("constraint %s violated", pgErr.ConstraintName)
		}
		return &element.IntegrityError{Reason: reason, Err: err}
	}
	return err
}

var _ element.Store = (*Store)(nil)
