package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantutran2k1/elements/pkg/queryparser"
)

func mustParse(t *testing.T, query string) []queryparser.Clause {
	t.Helper()
	clauses, err := queryparser.Parse(query)
	require.NoError(t, err)
	return clauses
}

func TestCompile(t *testing.T) {
	expr, err := Compile(mustParse(t, "name=Root && id>=3 && at<2024-03-01"), testCatalog)
	require.NoError(t, err)
	require.Len(t, expr.Terms, 3)

	assert.Equal(t, "name", expr.Terms[0].Field.Name)
	assert.Equal(t, queryparser.OpEq, expr.Terms[0].Operator)
	assert.Equal(t, "Root", expr.Terms[0].Value)

	assert.Equal(t, "item_id", expr.Terms[1].Field.Path)
	assert.Equal(t, queryparser.OpGe, expr.Terms[1].Operator)
	assert.Equal(t, int64(3), expr.Terms[1].Value)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), expr.Terms[2].Value)
}

func TestCompileEmptyMatchesAll(t *testing.T) {
	expr, err := Compile(nil, testCatalog)
	require.NoError(t, err)
	assert.True(t, expr.IsEmpty())
	assert.True(t, expr.Match(item{}))
}

func TestCompileUnknownFieldWinsOverBadValue(t *testing.T) {
	_, err := Compile(mustParse(t, "invalid=not-a-number"), testCatalog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.False(t, errors.Is(err, ErrBadValue))
}

func TestCompileFailsFast(t *testing.T) {
	_, err := Compile(mustParse(t, "id=abc && invalid=1"), testCatalog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadValue), "first failing clause is reported")

	var valueErr *ValueError
	require.ErrorAs(t, err, &valueErr)
	assert.Equal(t, "id", valueErr.Field)
}

func TestCompileNullOperators(t *testing.T) {
	expr, err := Compile(mustParse(t, "parentId=null"), testCatalog)
	require.NoError(t, err)
	assert.Nil(t, expr.Terms[0].Value)

	_, err = Compile(mustParse(t, "parentId!=null"), testCatalog)
	require.NoError(t, err)

	_, err = Compile(mustParse(t, "parentId>null"), testCatalog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadValue))
	assert.Contains(t, err.Error(), `with operator ">"`)
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	clauses := []queryparser.Clause{{Field: "id", Operator: "~", Value: "1"}}
	_, err := Compile(clauses, testCatalog)
	assert.True(t, errors.Is(err, ErrBadValue))
}

func TestCompilerInterface(t *testing.T) {
	var c Compiler[Expression[item]] = NewCompiler(testCatalog)

	expr, err := CompileString(c, "name=Root")
	require.NoError(t, err)
	assert.Equal(t, "name=Root", expr.String())

	_, err = CompileString(c, "name")
	assert.True(t, errors.Is(err, queryparser.ErrSyntax))
}

func TestExpressionString(t *testing.T) {
	expr, err := Compile(mustParse(t, "parentId=null && at>=2024-03-01T10:00:00Z && id!=4"), testCatalog)
	require.NoError(t, err)
	assert.Equal(t, "parentId=null && at>=2024-03-01T10:00:00Z && id!=4", expr.String())
}

func TestExpressionAnd(t *testing.T) {
	name, _ := testCatalog.Resolve("name")
	id, _ := testCatalog.Resolve("id")

	expr := Where(Eq(name, "Root")).And(Where(Eq(id, int64(1))))
	assert.Equal(t, "name=Root && id=1", expr.String())
}

func TestIsInvalid(t *testing.T) {
	_, syntaxErr := queryparser.Parse("x")
	_, unknownErr := Compile(mustParse(t, "nope=1"), testCatalog)
	_, valueErr := Compile(mustParse(t, "id=x"), testCatalog)
	_, ambiguousErr := queryparser.NewBuilder().Build([]queryparser.Param{{Name: "q"}, {Name: "q"}})

	for _, err := range []error{syntaxErr, unknownErr, valueErr, ambiguousErr} {
		assert.True(t, IsInvalid(err), "%v", err)
	}
	assert.False(t, IsInvalid(errors.New("connection refused")))
	assert.False(t, IsInvalid(nil))
}
