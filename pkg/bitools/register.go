// Package bitools registers the deterministic BI collaborator tools: SQL
// execution against the local warehouse, schema introspection, and chart
// recommendation. The execution engine treats these as opaque string-result
// handlers.
package bitools

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meridianbi/meridian/pkg/tool"
)

// Options configures BI tool registration
type Options struct {
	// DB is the warehouse connection used by query and schema tools
	DB *sql.DB

	// MaxRows caps rows returned by run_query (default 100)
	MaxRows int
}

// Open opens the warehouse connection for the configured driver and DSN
func Open(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return db, nil
}

// Register registers every BI tool against the registry
func Register(registry *tool.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 100
	}

	tools := []tool.Definition{
		runQueryTool(opts),
		listTablesTool(opts),
		describeTableTool(opts),
		recommendChartTool(),
	}

	for _, def := range tools {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}
