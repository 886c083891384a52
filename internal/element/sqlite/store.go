// Package sqlite stores elements in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/element/sqlstmt"
	"github.com/vantutran2k1/elements/pkg/filter"
)

//go:embed schema.sql
var schemaSQL string

const uniqueTypeSQL = `CREATE UNIQUE INDEX IF NOT EXISTS elements_type_key ON elements (type)`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	reader
	db *sql.DB
}

// Open opens the database file at path with foreign keys enforced. The pool
// is limited to one connection, which serialises writers.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return NewStore(db), nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		reader: reader{q: db, stmt: sqlstmt.New(sqlstmt.SQLite)},
		db:     db,
	}
}

func (s *Store) EnsureSchema(ctx context.Context, uniqueType bool) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if uniqueType {
		if _, err := s.db.ExecContext(ctx, uniqueTypeSQL); err != nil {
			return fmt.Errorf("create type index: %w", err)
		}
	}
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(element.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&tx{reader{q: sqlTx, stmt: s.stmt}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return mapError(sqlTx.Commit())
}

func (s *Store) Close() error {
	return s.db.Close()
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

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elements := []element.Element{}
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
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
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanElement(rows *sql.Rows) (element.Element, error) {
	var (
		e       element.Element
		parent  sql.NullInt64
		created string
	)
	if err := rows.Scan(&e.ID, &parent, &e.OwnerID, &e.Type, &e.Name, &created); err != nil {
		return element.Element{}, err
	}

	if parent.Valid {
		e.ParentID = &parent.Int64
	}

	ts, err := sqlstmt.ParseTime(created)
	if err != nil {
		return element.Element{}, fmt.Errorf("element %d: bad created value %q: %w", e.ID, created, err)
	}
	e.Created = ts
	return e, nil
}

type tx struct {
	reader
}

func (t *tx) Insert(ctx context.Context, e element.Element) (int64, error) {
	query, args, err := t.stmt.Insert(e)
	if err != nil {
		return 0, err
	}

	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
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
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// mapError turns SQLITE_CONSTRAINT results, including extended codes, into
// element integrity errors.
func mapError(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return &element.IntegrityError{Reason: "constraint violated", Err: err}
	}
	return err
}

var _ element.Store = (*Store)(nil)
