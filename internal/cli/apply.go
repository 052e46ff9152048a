package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"qlmodel/config"
	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/adapter/extensions"
	"qlmodel/internal/adapter/layout"
	"qlmodel/internal/adapter/store"
	"qlmodel/internal/domain"
	"qlmodel/internal/usecase"
)

var (
	applyDBDir   string
	applySaveDir string
	applyOutput  string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write the saved modeling session to an extension file",
	Long: `Rebuild the usage list from a previous run's raw results, overlay the
autosaved session models, and write the resulting extension file. Does
not contact the evaluation backend.

Examples:
  qlmodel apply --db ./mydb -s ./run -o java.model.yml`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&applyDBDir, "db", "", "database directory (required)")
	applyCmd.Flags().StringVarP(&applySaveDir, "save-dir", "s", "", "save directory of a previous run (required)")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "extension file to write (required)")
	applyCmd.MarkFlagRequired("db")
	applyCmd.MarkFlagRequired("save-dir")
	applyCmd.MarkFlagRequired("output")
}

func runApply(cmd *cobra.Command, args []string) error {
	c := GetConfig()
	run := layout.NewQueryRun(applySaveDir)

	reader, err := bqrs.Open(run.ResultsPath())
	if err != nil {
		return fmt.Errorf("failed to open results (run 'qlmodel generate' first): %w", err)
	}

	var tuples [][]domain.Value
	names := reader.ResultSets()
	if len(names) > 0 {
		name := names[0]
		for _, n := range names {
			if n == "#select" || n == "select" {
				name = n
				break
			}
		}
		offset := 0
		for {
			chunk, err := reader.Decode(name, offset, c.Results.PageSize)
			if err != nil {
				return fmt.Errorf("failed to decode results: %w", err)
			}
			tuples = append(tuples, chunk.Tuples...)
			if chunk.NextPageOffset == nil {
				break
			}
			offset = *chunk.NextPageOffset
		}
	}
	usages := usecase.AggregateUsages(tuples)

	if err := config.EnsureStateDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	sessions, err := store.NewSessionStore(config.SessionDBPath(GetRootDir()))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	models, err := sessions.LoadModels(applyDBDir)
	if err != nil {
		return fmt.Errorf("failed to load session models: %w", err)
	}

	data, err := extensions.CreateDataExtensionYaml(usages, models)
	if err != nil {
		return err
	}
	if err := os.WriteFile(applyOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write extension file: %w", err)
	}

	fmt.Printf("Models for %d usages written to %s\n", len(usages), applyOutput)
	return nil
}
