package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/element/sqlstmt"
	"github.com/vantutran2k1/elements/pkg/filter"
	"github.com/vantutran2k1/elements/pkg/queryparser"
)

func newExplainCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show how a query is parsed and the SQL it compiles to",
		Example: `  elementsctl explain 'type=TEST && parentId=null'
  elementsctl explain --params 'type=TEST&ownerId=OWN1' --dialect sqlite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := sqlstmt.ParseDialect(v.GetString("explain.dialect"))
			if err != nil {
				return err
			}

			query := args[0]
			if v.GetBool("explain.params") {
				query, err = queryparser.NewBuilder().BuildRaw(query)
				if err != nil {
					return err
				}
			}
			return explain(cmd.OutOrStdout(), query, dialect)
		},
	}

	cmd.Flags().String("dialect", string(sqlstmt.Postgres), "SQL dialect: postgres or sqlite")
	cmd.Flags().Bool("params", false, "treat the argument as URL query parameters, as sent to GET /v1")
	_ = v.BindPFlag("explain.dialect", cmd.Flags().Lookup("dialect"))
	_ = v.BindPFlag("explain.params", cmd.Flags().Lookup("params"))

	return cmd
}

func explain(w io.Writer, query string, dialect sqlstmt.Dialect) error {
	clauses, err := queryparser.Parse(query)
	if err != nil {
		return err
	}

	f, err := filter.Compile(clauses, element.Catalog)
	if err != nil {
		return err
	}

	sql, args, err := sqlstmt.New(dialect).Select(f)
	if err != nil {
		return err
	}

	canonical := f.String()
	if canonical == "" {
		canonical = "(all elements)"
	}

	fmt.Fprintf(w, "query:   %s\n", canonical)
	fmt.Fprintf(w, "clauses:\n")
	for i, t := range f.Terms {
		fmt.Fprintf(w, "  %d. %s %s %v (%s -> %s)\n", i+1, t.Field.Name, t.Operator, displayValue(t.Value), t.Field.Type, t.Field.Path)
	}
	fmt.Fprintf(w, "sql:     %s\n", sql)
	fmt.Fprintf(w, "args:    %s\n", formatArgs(args))
	return nil
}

func displayValue(v any) any {
	if v == nil {
		return filter.Null
	}
	return v
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
