package queryparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Conjunction joins clauses in the canonical query string.
const Conjunction = "&&"

type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpGt Operator = ">"
	OpGe Operator = ">="
	OpLt Operator = "<"
	OpLe Operator = "<="
)

func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// Clause is a single field<op>value condition. Value is the raw, uncoerced
// text; field names are not validated here.
type Clause struct {
	Field    string
	Operator Operator
	Value    string
}

func (c Clause) String() string {
	return c.Field + string(c.Operator) + c.Value
}

type (
	clauseNode struct {
		Pos      lexer.Position
		Field    string `@Text`
		Operator string `@Operator`
		Value    string `@Text?`
	}

	AST struct {
		Clauses []*clauseNode `( @@ ( "&&" @@ )* )?`
	}
)

// After the operator the lexer switches to the Value state, where text runs
// to the next conjunction. Only a second "=" is rejected there, so values may
// hold "!", "<", ">" and single "&" characters.
var (
	queryLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Conjunction", Pattern: `&&`},
			{Name: "Operator", Pattern: `!=|>=|<=|=|>|<`, Action: lexer.Push("Value")},
			{Name: "Text", Pattern: `(?:[^=!<>&]|!(?:[^=]|$)|&(?:[^&]|$))+`},
		},
		"Value": {
			{Name: "Conjunction", Pattern: `&&`, Action: lexer.Pop()},
			{Name: "Text", Pattern: `(?:[^&=]|&(?:[^&=]|$))+`},
		},
	})

	queryParser = participle.MustBuild[AST](
		participle.Lexer(queryLexer),
	)
)

// Parse turns a canonical query string into its ordered clause list. An
// empty or blank query yields no clauses.
func Parse(query string) ([]Clause, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ast, err := queryParser.ParseString("", query)
	if err != nil {
		return nil, newSyntaxError(query, err)
	}

	clauses := make([]Clause, 0, len(ast.Clauses))
	for _, node := range ast.Clauses {
		field := strings.TrimSpace(node.Field)
		if field == "" {
			return nil, &SyntaxError{
				Query:    query,
				Offset:   node.Pos.Offset,
				Fragment: fragmentAt(query, node.Pos.Offset),
				Err:      errors.New("empty field name"),
			}
		}

		clauses = append(clauses, Clause{
			Field:    field,
			Operator: Operator(node.Operator),
			Value:    strings.TrimSpace(node.Value),
		})
	}

	return clauses, nil
}

// Format renders clauses in canonical form.
func Format(clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " "+Conjunction+" ")
}

func newSyntaxError(query string, err error) *SyntaxError {
	offset := len(query)
	var perr participle.Error
	if errors.As(err, &perr) {
		offset = perr.Position().Offset
	}

	msg := err.Error()
	if perr != nil {
		msg = perr.Message()
	}

	return &SyntaxError{
		Query:    query,
		Offset:   offset,
		Fragment: fragmentAt(query, offset),
		Err:      fmt.Errorf("%s", msg),
	}
}

// fragmentAt returns the clause text surrounding offset, for error messages.
func fragmentAt(query string, offset int) string {
	if offset < 0 || offset > len(query) {
		offset = len(query)
	}

	start := strings.LastIndex(query[:offset], Conjunction)
	if start < 0 {
		start = 0
	} else {
		start += len(Conjunction)
	}

	end := strings.Index(query[offset:], Conjunction)
	if end < 0 {
		end = len(query)
	} else {
		end += offset
	}

	return strings.TrimSpace(query[start:end])
}
