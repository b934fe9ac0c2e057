package bitools

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianbi/meridian/pkg/tool"
)

func listTablesTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "list_tables",
		Description: "List the tables available in the warehouse.",
		Parameters:  []tool.Parameter{},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *tool.ExecutionContext) (string, error) {
			if opts.DB == nil {
				return "", fmt.Errorf("no warehouse configured")
			}

			rows, err := opts.DB.QueryContext(ctx,
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
			if err != nil {
				return "", fmt.Errorf("failed to list tables: %w", err)
			}
			defer rows.Close()

			var names []string
			for rows.Next() {
				var name string
				if err := rows.Scan(&name); err != nil {
					return "", fmt.Errorf("failed to scan table name: %w", err)
				}
				names = append(names, name)
			}
			if err := rows.Err(); err != nil {
				return "", fmt.Errorf("table listing failed: %w", err)
			}

			if len(names) == 0 {
				return "no tables found", nil
			}
			return strings.Join(names, "\n"), nil
		},
	}
}

func describeTableTool(opts Options) tool.Definition {
	return tool.Definition{
		Name:        "describe_table",
		Description: "Describe the columns of a warehouse table.",
		Parameters: []tool.Parameter{
			{Name: "table", Type: "string", Description: "Table name to describe", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *tool.ExecutionContext) (string, error) {
			table, _ := args["table"].(string)
			if err := validateIdentifier(table); err != nil {
				return "", err
			}
			if opts.DB == nil {
				return "", fmt.Errorf("no warehouse configured")
			}

			rows, err := opts.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
			if err != nil {
				return "", fmt.Errorf("failed to describe table: %w", err)
			}
			defer rows.Close()

			var b strings.Builder
			count := 0
			for rows.Next() {
				var cid int
				var name, colType string
				var notNull, pk int
				var dflt interface{}
				if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
					return "", fmt.Errorf("failed to scan column info: %w", err)
				}

				fmt.Fprintf(&b, "%s %s", name, colType)
				if notNull == 1 {
					b.WriteString(" NOT NULL")
				}
				if pk == 1 {
					b.WriteString(" PRIMARY KEY")
				}
				b.WriteString("\n")
				count++
			}
			if err := rows.Err(); err != nil {
				return "", fmt.Errorf("column listing failed: %w", err)
			}

			if count == 0 {
				return "", fmt.Errorf("table not found: %s", table)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// validateIdentifier rejects table names that could escape the quoted
// PRAGMA argument.
func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	for _, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("invalid table name: %s", name)
		}
	}
	return nil
}
