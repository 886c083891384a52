// Package sqlstmt builds the SQL statements both relational backends run
// against the elements table.
package sqlstmt

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/filter/sqlfilter"
)

const Table = "elements"

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// TimeLayout is how SQLite stores timestamps: fixed width UTC text, so that
// string order is time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(s); d {
	case Postgres, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("unknown sql dialect %q", s)
}

var columns = []string{
	element.FieldID.Path,
	element.FieldParentID.Path,
	element.FieldOwnerID.Path,
	element.FieldType.Path,
	element.FieldName.Path,
	element.FieldCreated.Path,
}

type Builder struct {
	dialect Dialect
	sb      sq.StatementBuilderType
	render  *sqlfilter.Renderer[element.Element]
}

func New(d Dialect) *Builder {
	b := &Builder{dialect: d}
	switch d {
	case SQLite:
		b.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		b.render = sqlfilter.NewRenderer[element.Element](sqlfilter.WithValueEncoder(encodeSQLite))
	default:
		b.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		b.render = sqlfilter.NewRenderer[element.Element]()
	}
	return b
}

func (b *Builder) Dialect() Dialect { return b.dialect }

// Columns lists the selected columns in scan order.
func (b *Builder) Columns() []string { return columns }

func (b *Builder) Select(f element.Filter) (string, []any, error) {
	where, err := b.render.Render(f)
	if err != nil {
		return "", nil, err
	}
	return b.sb.Select(columns...).
		From(Table).
		Where(where).
		OrderBy(element.FieldID.Path).
		ToSql()
}

func (b *Builder) Count(f element.Filter) (string, []any, error) {
	where, err := b.render.Render(f)
	if err != nil {
		return "", nil, err
	}
	return b.sb.Select("COUNT(*)").From(Table).Where(where).ToSql()
}

// Insert writes every column but the id. Postgres returns the new id; SQLite
// callers read it from the result.
func (b *Builder) Insert(e element.Element) (string, []any, error) {
	q := b.sb.Insert(Table).
		Columns(columns[1:]...).
		Values(
			parentValue(e.ParentID),
			e.OwnerID,
			e.Type,
			e.Name,
			b.render.Encode(filter.TypeTime, e.Created),
		)
	if b.dialect == Postgres {
		q = q.Suffix("RETURNING " + element.FieldID.Path)
	}
	return q.ToSql()
}

// Update replaces the mutable columns; created is never rewritten.
func (b *Builder) Update(e element.Element) (string, []any, error) {
	return b.sb.Update(Table).
		Set(element.FieldParentID.Path, parentValue(e.ParentID)).
		Set(element.FieldOwnerID.Path, e.OwnerID).
		Set(element.FieldType.Path, e.Type).
		Set(element.FieldName.Path, e.Name).
		Where(sq.Eq{element.FieldID.Path: e.ID}).
		ToSql()
}

func (b *Builder) Delete(id int64) (string, []any, error) {
	return b.sb.Delete(Table).Where(sq.Eq{element.FieldID.Path: id}).ToSql()
}

func parentValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func encodeSQLite(t filter.Type, v any) any {
	if ts, ok := v.(time.Time); ok && t == filter.TypeTime {
		return FormatTime(ts)
	}
	return v
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
