package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meridianbi/meridian/pkg/react"
	"github.com/spf13/cobra"
)

var (
	runThread     string
	runContext    []string
	runIterations int
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run one task through the reasoning loop",
	Long: `Run a single natural-language goal through the reason/act/observe loop.
The engine selects tools, executes them against the warehouse, and prints
the final answer as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runThread, "thread", "", "thread id for durable, resumable runs")
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "context key=value pairs passed to tools")
	runCmd.Flags().IntVar(&runIterations, "max-iterations", 0, "override the configured iteration cap")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	contextVars, err := parseContextPairs(runContext)
	if err != nil {
		return err
	}

	result := eng.react.Run(cmd.Context(), react.RunParams{
		Goal:          strings.Join(args, " "),
		Context:       contextVars,
		ThreadID:      runThread,
		MaxIterations: runIterations,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	return nil
}

func parseContextPairs(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context pair %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
