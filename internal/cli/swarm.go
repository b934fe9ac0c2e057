package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meridianbi/meridian/pkg/swarm"
	"github.com/spf13/cobra"
)

var swarmFile string

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Run a batch of hypotheses in parallel",
	Long: `Run independent hypotheses concurrently under the configured
concurrency cap, then synthesize the results with one LLM call. Hypotheses
are read from a JSON file: an array of {hypothesis, tool, args} objects.`,
	RunE: runSwarm,
}

func init() {
	swarmCmd.Flags().StringVar(&swarmFile, "file", "", "JSON file with the hypothesis list (required)")
	swarmCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(swarmCmd)
}

func runSwarm(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(swarmFile)
	if err != nil {
		return fmt.Errorf("failed to read hypothesis file: %w", err)
	}

	var specs []swarm.TaskSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("invalid hypothesis file: %w", err)
	}
	if len(specs) == 0 {
		return fmt.Errorf("hypothesis file is empty")
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	result := eng.swarm.ExecuteParallel(cmd.Context(), specs)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	return nil
}
