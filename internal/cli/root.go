package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"qlmodel/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "qlmodel",
	Short: "Run usage queries against code databases and curate API models",
	Long: `qlmodel drives an external query-evaluation backend to find calls to
external APIs in an analyzed code database, decodes the raw results, and
maintains a YAML extension file of user-authored models (sources, sinks,
summaries) for those APIs.

Example usage:
  qlmodel compile -q FetchCalls.ql -s ./run     # Compile a query
  qlmodel generate --db ./mydb --language java  # Find external API usages
  qlmodel export-csv -r ./run/results.bqrs -o out.csv`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./qlmodel.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
