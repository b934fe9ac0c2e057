package bitools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/meridianbi/meridian/pkg/tool"
)

func runQueryTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "run_query",
		Description: "Run a read-only SQL query against the warehouse and return the rows.",
		Parameters: []tool.Parameter{
			{Name: "sql", Type: "string", Description: "SQL SELECT statement to execute", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *tool.ExecutionContext) (string, error) {
			query, _ := args["sql"].(string)
			if err := checkReadOnly(query); err != nil {
				return "", err
			}
			if opts.DB == nil {
				return "", fmt.Errorf("no warehouse configured")
			}

			rows, err := opts.DB.QueryContext(ctx, query)
			if err != nil {
				return "", fmt.Errorf("query failed: %w", err)
			}
			defer rows.Close()

			return renderRows(rows, opts.MaxRows)
		},
	}
}

// checkReadOnly rejects statements that could mutate the warehouse
func checkReadOnly(query string) error {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	if trimmed == "" {
		return fmt.Errorf("sql cannot be empty")
	}
	if !strings.HasPrefix(trimmed, "select") && !strings.HasPrefix(trimmed, "with") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	return nil
}

// renderRows formats a result set as a pipe-separated table
func renderRows(rows *sql.Rows, maxRows int) (string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	count := 0
	truncated := false
	for rows.Next() {
		if count >= maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}

		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = renderValue(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("row iteration failed: %w", err)
	}

	fmt.Fprintf(&b, "(%d rows", count)
	if truncated {
		b.WriteString(", truncated")
	}
	b.WriteString(")")

	return b.String(), nil
}

func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
