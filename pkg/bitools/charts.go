package bitools

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianbi/meridian/pkg/tool"
)

// Chart kinds produced by the recommender
const (
	ChartLine    = "line"
	ChartBar     = "bar"
	ChartScatter = "scatter"
	ChartKPI     = "kpi_card"
	ChartTable   = "table"
)

// lowCardinalityMax is the category count above which a bar chart stops
// being readable.
const lowCardinalityMax = 20

// Column describes the shape of one result column for chart recommendation
type Column struct {
	Name        string
	Type        string // "time", "number", "category"
	Cardinality int    // distinct values; 0 = unknown
}

// RecommendChart picks a chart kind from the column shapes
func RecommendChart(columns []Column) string {
	var times, numbers, categories int
	lowCardCategory := false

	for _, col := range columns {
		switch col.Type {
		case "time":
			times++
		case "number":
			numbers++
		case "category":
			categories++
			if col.Cardinality > 0 && col.Cardinality <= lowCardinalityMax {
				lowCardCategory = true
			}
		}
	}

	switch {
	case times >= 1 && numbers >= 1:
		return ChartLine
	case lowCardCategory && numbers >= 1:
		return ChartBar
	case numbers >= 2:
		return ChartScatter
	case numbers == 1 && len(columns) == 1:
		return ChartKPI
	default:
		return ChartTable
	}
}

func recommendChartTool() tool.Definition {
	return tool.Definition{
		Name:        "recommend_chart",
		Description: "Recommend a chart type for a result set based on its column shapes.",
		Parameters: []tool.Parameter{
			{Name: "columns", Type: "array", Description: "Columns as objects with name, type (time|number|category) and optional cardinality", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *tool.ExecutionContext) (string, error) {
			raw, _ := args["columns"].([]interface{})
			if len(raw) == 0 {
				return "", fmt.Errorf("columns cannot be empty")
			}

			columns := make([]Column, 0, len(raw))
			for _, item := range raw {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("each column must be an object")
				}
				col := Column{}
				col.Name, _ = obj["name"].(string)
				colType, _ := obj["type"].(string)
				col.Type = strings.ToLower(colType)
				if card, ok := obj["cardinality"].(float64); ok {
					col.Cardinality = int(card)
				}
				columns = append(columns, col)
			}

			return RecommendChart(columns), nil
		},
	}
}
