package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the modeling tool.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Compile  CompileConfig  `yaml:"compile"`
	Results  ResultsConfig  `yaml:"results"`
	Modeling ModelingConfig `yaml:"modeling"`
}

// ServerConfig holds evaluation backend configuration.
type ServerConfig struct {
	Path        string   `yaml:"path"` // query server executable
	Args        []string `yaml:"args"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// CompileConfig holds the compiler switches sent with every compile
// request.
type CompileConfig struct {
	ComputeNoLocationURLs bool `yaml:"compute_no_location_urls"`
	FailOnWarnings        bool `yaml:"fail_on_warnings"`
	FastCompilation       bool `yaml:"fast_compilation"`
	IncludeDilInQlo       bool `yaml:"include_dil_in_qlo"`
	LocalChecking         bool `yaml:"local_checking"`
	NoComputeGetURL       bool `yaml:"no_compute_get_url"`
	NoComputeToString     bool `yaml:"no_compute_to_string"`
	ComputeDefaultStrings bool `yaml:"compute_default_strings"`
	EmitDebugInfo         bool `yaml:"emit_debug_info"`
}

// ResultsConfig holds result decoding and export configuration.
type ResultsConfig struct {
	PageSize     int  `yaml:"page_size"`
	CanaryGraphs bool `yaml:"canary_graphs"` // surface interpreted results for "graph" queries
}

// ModelingConfig holds method-modeling configuration.
type ModelingConfig struct {
	Languages      []string `yaml:"languages"` // databases these languages can be modeled
	ModelFileGlobs []string `yaml:"model_file_globs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Path:        "codeql-query-server",
			Args:        []string{"--threads", "0"},
			TimeoutSecs: 1000,
		},
		Compile: CompileConfig{
			ComputeNoLocationURLs: true,
			FailOnWarnings:        false,
			FastCompilation:       false,
			IncludeDilInQlo:       true,
			LocalChecking:         false,
			NoComputeGetURL:       false,
			NoComputeToString:     false,
			ComputeDefaultStrings: true,
			EmitDebugInfo:         true,
		},
		Results: ResultsConfig{
			PageSize:     1000,
			CanaryGraphs: false,
		},
		Modeling: ModelingConfig{
			Languages:      []string{"java", "csharp"},
			ModelFileGlobs: []string{"**/*.model.yml", "**/*.model.yaml"},
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for
// qlmodel.yaml, then .qlmodel/config.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "qlmodel.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".qlmodel", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SessionDBPath returns the path to the session autosave database.
func SessionDBPath(dir string) string {
	return filepath.Join(dir, ".qlmodel", "session.db")
}

// EnsureStateDir ensures the .qlmodel directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".qlmodel"), 0755)
}
