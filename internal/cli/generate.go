package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"qlmodel/config"
	"qlmodel/internal/adapter/store"
	"qlmodel/internal/domain"
	"qlmodel/internal/usecase"
)

var (
	generateDBDir      string
	generateDataset    string
	generateLanguage   string
	generateSaveDir    string
	generateImportPack string
	generateOutput     string
	generateTop        int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Find external API usages and merge them into the modeling session",
	Long: `Run the external-API usage analysis against a database: generate the
usage query pack, compile and evaluate it, aggregate the call sites per
API signature, and merge the candidates with previously saved models.

Examples:
  qlmodel generate --db ./mydb --language java -s ./run
  qlmodel generate --db ./mydb --language java -s ./run --import-pack ./models -o java.model.yml`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateDBDir, "db", "", "database directory (required)")
	generateCmd.Flags().StringVar(&generateDataset, "dataset", "", "dataset directory (default: <db>/db)")
	generateCmd.Flags().StringVar(&generateLanguage, "language", "", "database language (required)")
	generateCmd.Flags().StringVarP(&generateSaveDir, "save-dir", "s", "", "save directory for run artifacts (required)")
	generateCmd.Flags().StringVar(&generateImportPack, "import-pack", "", "extension pack directory to import models from")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write merged models to this extension file")
	generateCmd.Flags().IntVar(&generateTop, "top", 20, "number of usage records to print")
	generateCmd.MarkFlagRequired("db")
	generateCmd.MarkFlagRequired("language")
	generateCmd.MarkFlagRequired("save-dir")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := GetConfig()

	client, err := startServer(ctx)
	if err != nil {
		return err
	}
	defer client.Stop()

	if err := config.EnsureStateDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	sessions, err := store.NewSessionStore(config.SessionDBPath(GetRootDir()))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	dataset := generateDataset
	if dataset == "" {
		dataset = filepath.Join(generateDBDir, "db")
	}
	db := domain.DatabaseItem{
		DatabaseDir: generateDBDir,
		DatasetDir:  dataset,
		Language:    generateLanguage,
	}
	defer client.DeregisterDatabase(ctx, db)

	modeling := usecase.NewModelingStore()
	analyze := usecase.NewAnalyzeUseCase(
		client,
		sessions,
		modeling,
		compilationOptions(),
		c.Modeling.Languages,
		c.Results.PageSize,
	)

	if generateImportPack != "" {
		n, err := analyze.ImportExtensions(generateImportPack, c.Modeling.ModelFileGlobs)
		if err != nil {
			return fmt.Errorf("failed to import extension pack: %w", err)
		}
		fmt.Printf("Imported %d models from %s\n", n, generateImportPack)
	}

	result, err := analyze.Generate(ctx, db, generateSaveDir, barSink("Analyzing"))
	if err != nil {
		for _, m := range resultMessages(result) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", m.Severity, m.Message)
		}
		return err
	}

	fmt.Printf("\nFound %d external APIs (%.1f%% already supported)\n\n",
		len(result.Usages), result.SupportedPercent)

	shown := len(result.Usages)
	if generateTop > 0 && generateTop < shown {
		shown = generateTop
	}
	for _, u := range result.Usages[:shown] {
		marker := " "
		if u.Supported {
			marker = "*"
		}
		fmt.Printf("%s %4d  %s\n", marker, len(u.Usages), u.Signature)
	}

	if generateOutput != "" {
		if err := analyze.ExportExtensions(generateOutput, result.Usages); err != nil {
			return fmt.Errorf("failed to write extension file: %w", err)
		}
		fmt.Printf("\nModels written to %s\n", generateOutput)
	}
	return nil
}

func resultMessages(result *usecase.GenerateResult) []domain.CompileMessage {
	if result == nil {
		return nil
	}
	return result.CompileMessages
}
