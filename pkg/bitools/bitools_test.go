package bitools

import (
	"context"
	"database/sql"
	"testing"

	"github.com/meridianbi/meridian/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warehouse(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE sales (
			id INTEGER PRIMARY KEY,
			region TEXT NOT NULL,
			amount REAL
		);
		INSERT INTO sales (region, amount) VALUES
			('north', 120.5),
			('south', 80.0),
			('west', 99.9);
	`)
	require.NoError(t, err)

	return db
}

func registryWithWarehouse(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, Register(r, Options{DB: warehouse(t)}))
	return r
}

func TestRunQuery(t *testing.T) {
	r := registryWithWarehouse(t)

	t.Run("should return rows for a select", func(t *testing.T) {
		obs := r.Execute(context.Background(), "run_query", map[string]interface{}{
			"sql": "SELECT region, amount FROM sales ORDER BY region",
		}, nil)

		assert.Contains(t, obs, "region | amount")
		assert.Contains(t, obs, "north | 120.5")
		assert.Contains(t, obs, "(3 rows)")
	})

	t.Run("should reject mutating statements", func(t *testing.T) {
		obs := r.Execute(context.Background(), "run_query", map[string]interface{}{
			"sql": "DELETE FROM sales",
		}, nil)

		assert.Contains(t, obs, "only SELECT queries are allowed")
	})

	t.Run("should absorb SQL errors into observations", func(t *testing.T) {
		obs := r.Execute(context.Background(), "run_query", map[string]interface{}{
			"sql": "SELECT nope FROM missing",
		}, nil)

		assert.Contains(t, obs, "tool error")
	})

	t.Run("should truncate at the row cap", func(t *testing.T) {
		r := tool.NewRegistry()
		require.NoError(t, Register(r, Options{DB: warehouse(t), MaxRows: 2}))

		obs := r.Execute(context.Background(), "run_query", map[string]interface{}{
			"sql": "SELECT region FROM sales",
		}, nil)

		assert.Contains(t, obs, "(2 rows, truncated)")
	})
}

func TestSchemaTools(t *testing.T) {
	r := registryWithWarehouse(t)

	t.Run("list_tables should return table names", func(t *testing.T) {
		obs := r.Execute(context.Background(), "list_tables", map[string]interface{}{}, nil)
		assert.Equal(t, "sales", obs)
	})

	t.Run("describe_table should return column definitions", func(t *testing.T) {
		obs := r.Execute(context.Background(), "describe_table", map[string]interface{}{
			"table": "sales",
		}, nil)

		assert.Contains(t, obs, "id INTEGER")
		assert.Contains(t, obs, "region TEXT NOT NULL")
		assert.Contains(t, obs, "amount REAL")
	})

	t.Run("describe_table should reject suspicious names", func(t *testing.T) {
		obs := r.Execute(context.Background(), "describe_table", map[string]interface{}{
			"table": "sales; DROP TABLE sales",
		}, nil)

		assert.Contains(t, obs, "invalid table name")
	})

	t.Run("describe_table should report missing tables", func(t *testing.T) {
		obs := r.Execute(context.Background(), "describe_table", map[string]interface{}{
			"table": "ghosts",
		}, nil)

		assert.Contains(t, obs, "table not found")
	})
}

func TestRecommendChart(t *testing.T) {
	t.Run("time plus number should be a line chart", func(t *testing.T) {
		assert.Equal(t, ChartLine, RecommendChart([]Column{
			{Name: "day", Type: "time"},
			{Name: "revenue", Type: "number"},
		}))
	})

	t.Run("low-cardinality category plus number should be a bar chart", func(t *testing.T) {
		assert.Equal(t, ChartBar, RecommendChart([]Column{
			{Name: "region", Type: "category", Cardinality: 4},
			{Name: "revenue", Type: "number"},
		}))
	})

	t.Run("two numerics should be a scatter plot", func(t *testing.T) {
		assert.Equal(t, ChartScatter, RecommendChart([]Column{
			{Name: "price", Type: "number"},
			{Name: "quantity", Type: "number"},
		}))
	})

	t.Run("a single aggregate should be a KPI card", func(t *testing.T) {
		assert.Equal(t, ChartKPI, RecommendChart([]Column{
			{Name: "total_revenue", Type: "number"},
		}))
	})

	t.Run("anything else should fall back to a table", func(t *testing.T) {
		assert.Equal(t, ChartTable, RecommendChart([]Column{
			{Name: "customer", Type: "category", Cardinality: 5000},
		}))
	})

	t.Run("should be callable through the registry", func(t *testing.T) {
		r := registryWithWarehouse(t)

		obs := r.Execute(context.Background(), "recommend_chart", map[string]interface{}{
			"columns": []interface{}{
				map[string]interface{}{"name": "day", "type": "time"},
				map[string]interface{}{"name": "revenue", "type": "number"},
			},
		}, nil)

		assert.Equal(t, ChartLine, obs)
	})
}
