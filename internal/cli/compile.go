package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"qlmodel/internal/adapter/layout"
	"qlmodel/internal/domain"
)

var (
	compileQuery   string
	compileSaveDir string
	compilePackDir string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a query against the evaluation backend",
	Long: `Compile a query and print its diagnostics. The compiled query object is
written into the save directory under its conventional name.

Examples:
  qlmodel compile -q FetchCalls.ql -s ./run
  qlmodel compile -q FetchCalls.ql -s ./run --pack ./mypack`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileQuery, "query", "q", "", "query file to compile (required)")
	compileCmd.Flags().StringVarP(&compileSaveDir, "save-dir", "s", "", "save directory for run artifacts (required)")
	compileCmd.Flags().StringVar(&compilePackDir, "pack", "", "compile as part of a query pack directory")
	compileCmd.MarkFlagRequired("query")
	compileCmd.MarkFlagRequired("save-dir")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := startServer(ctx)
	if err != nil {
		return err
	}
	defer client.Stop()

	run := layout.NewQueryRun(compileSaveDir)
	target := domain.CompileTarget{Query: &domain.QueryToCheck{QueryPath: compileQuery}}
	if compilePackDir != "" {
		target = domain.CompileTarget{
			QueryPack: &domain.QueryPackRef{PackDir: compilePackDir, QueryPath: compileQuery},
		}
	}

	req := domain.CompileRequest{
		CompilationOptions: compilationOptions(),
		QueryToCheck:       compileQuery,
		ResultPath:         run.CompiledQueryPath(),
		Target:             target,
	}
	messages, err := client.Compile(ctx, req, barSink("Compiling"))
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	errorCount := 0
	for _, m := range messages {
		fmt.Printf("%s: %s\n", m.Severity, m.Message)
		if m.Severity == domain.SeverityError {
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("query did not compile (%d errors)", errorCount)
	}

	fmt.Printf("Compiled query written to %s\n", run.CompiledQueryPath())
	return nil
}
