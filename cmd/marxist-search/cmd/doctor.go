package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/preflight"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Preflight check: verify articles.db and the vector index file exist before serve",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// runDoctor runs the generic disk/memory/permission/embedder checks, then
// the two checks tied to this repo's persisted-state layout: articles.db
// and the vector index file.
func runDoctor(cmd *cobra.Command, args []string) error {
	checker := preflight.New(preflight.WithVerbose(debugFlag), preflight.WithOutput(os.Stdout))
	results := checker.RunAll(cmd.Context(), cfg.Paths.DataDir)

	results = append(results, checkMetadataStore(), checkVectorIndex())

	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}

func checkMetadataStore() preflight.CheckResult {
	path := cfg.MetadataPath()
	if _, err := os.Stat(path); err != nil {
		return preflight.CheckResult{
			Name:     "metadata_store",
			Status:   preflight.StatusFail,
			Message:  fmt.Sprintf("articles.db not found at %s (run ingest first)", path),
			Required: true,
		}
	}
	return preflight.CheckResult{
		Name:     "metadata_store",
		Status:   preflight.StatusPass,
		Message:  "OK",
		Required: true,
	}
}

func checkVectorIndex() preflight.CheckResult {
	path := cfg.IndexPath()
	if _, err := os.Stat(path); err != nil {
		return preflight.CheckResult{
			Name:     "vector_index",
			Status:   preflight.StatusFail,
			Message:  fmt.Sprintf("vector index not found at %s (run ingest first)", path),
			Required: true,
		}
	}
	return preflight.CheckResult{
		Name:     "vector_index",
		Status:   preflight.StatusPass,
		Message:  "OK",
		Required: true,
	}
}
