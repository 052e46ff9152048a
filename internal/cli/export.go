package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/adapter/csvexport"
)

var (
	exportResults string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Export raw query results to CSV",
	Long: `Decode a raw result file page by page and write its primary result set
as CSV.

Examples:
  qlmodel export-csv -r ./run/results.bqrs -o results.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportResults, "results", "r", "", "raw result file (required)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "CSV output file (required)")
	exportCmd.MarkFlagRequired("results")
	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	reader, err := bqrs.Open(exportResults)
	if err != nil {
		return fmt.Errorf("failed to open results: %w", err)
	}

	exporter := csvexport.New(GetConfig().Results.PageSize)
	ok, err := exporter.Export(cmd.Context(), reader, exportOutput, barSink("Exporting"))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if !ok {
		fmt.Println("Nothing to export: the result file has no result sets")
		return nil
	}

	fmt.Printf("CSV written to %s\n", exportOutput)
	return nil
}
