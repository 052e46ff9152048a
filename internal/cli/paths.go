package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"qlmodel/internal/adapter/layout"
	"qlmodel/internal/domain"
)

var (
	pathsKind    string
	pathsHasMeta bool
)

var pathsCmd = &cobra.Command{
	Use:   "paths <save-dir>",
	Short: "Print the file layout of a query run",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaths,
}

func init() {
	rootCmd.AddCommand(pathsCmd)
	pathsCmd.Flags().StringVar(&pathsKind, "kind", "", "query result kind (problem, table, graph, ...)")
	pathsCmd.Flags().BoolVar(&pathsHasMeta, "db-has-metadata", true, "whether the database carries a metadata file")
}

func runPaths(cmd *cobra.Command, args []string) error {
	run := layout.NewQueryRun(args[0])

	fmt.Printf("compiled query:       %s\n", run.CompiledQueryPath())
	fmt.Printf("raw results:          %s\n", run.ResultsPath())
	fmt.Printf("dil:                  %s\n", run.DilPath())
	fmt.Printf("interpreted results:  %s\n", run.InterpretedResultsPath())

	if pathsKind != "" {
		md := domain.QueryMetadata{Kind: pathsKind}
		canary := GetConfig().Results.CanaryGraphs
		fmt.Printf("interpreted results apply: %v\n",
			layout.CanHaveInterpretedResults(md, pathsHasMeta, canary))
	}
	return nil
}
