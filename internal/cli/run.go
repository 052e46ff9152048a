package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"qlmodel/internal/adapter/layout"
	"qlmodel/internal/domain"
)

var (
	runQueryFile string
	runDBDir     string
	runDataset   string
	runSaveDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compile and evaluate a query against a database",
	Long: `Compile a query then evaluate it against a database, writing raw results
into the save directory.

Examples:
  qlmodel run -q FetchCalls.ql --db ./mydb -s ./run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runQueryFile, "query", "q", "", "query file to run (required)")
	runCmd.Flags().StringVar(&runDBDir, "db", "", "database directory (required)")
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "dataset directory (default: <db>/db)")
	runCmd.Flags().StringVarP(&runSaveDir, "save-dir", "s", "", "save directory for run artifacts (required)")
	runCmd.MarkFlagRequired("query")
	runCmd.MarkFlagRequired("db")
	runCmd.MarkFlagRequired("save-dir")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := startServer(ctx)
	if err != nil {
		return err
	}
	defer client.Stop()

	dataset := runDataset
	if dataset == "" {
		dataset = filepath.Join(runDBDir, "db")
	}
	db := domain.DatabaseItem{DatabaseDir: runDBDir, DatasetDir: dataset}

	if err := client.RegisterDatabase(ctx, db); err != nil {
		return fmt.Errorf("failed to register database: %w", err)
	}
	defer client.DeregisterDatabase(ctx, db)

	run := layout.NewQueryRun(runSaveDir)
	req := domain.CompileRequest{
		CompilationOptions: compilationOptions(),
		QueryToCheck:       runQueryFile,
		ResultPath:         run.CompiledQueryPath(),
		Target:             domain.CompileTarget{Query: &domain.QueryToCheck{QueryPath: runQueryFile}},
	}
	messages, err := client.Compile(ctx, req, barSink("Compiling"))
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	for _, m := range messages {
		fmt.Printf("%s: %s\n", m.Severity, m.Message)
		if m.Severity == domain.SeverityError {
			return fmt.Errorf("query did not compile")
		}
	}

	runReq := domain.RunRequest{
		QloPath:    run.CompiledQueryPath(),
		DatasetDir: db.DatasetDir,
		OutputPath: run.ResultsPath(),
	}
	if err := client.Run(ctx, runReq, barSink("Evaluating")); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	fmt.Printf("Raw results written to %s\n", run.ResultsPath())
	return nil
}
