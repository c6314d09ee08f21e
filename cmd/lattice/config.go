package lattice

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lattice configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file to $HOME/.lattice.yaml, or to the
path given with --output. Existing files are not overwritten unless --force
is set.`,
	RunE: runConfigInit,
}

var (
	configOutput string
	configForce  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configOutput, "output", "", "output path (default is $HOME/.lattice.yaml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

// defaultConfigDocument mirrors the viper defaults so a generated file is a
// faithful starting point for editing.
func defaultConfigDocument() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
			"mode": "debug",
		},
		"database": map[string]any{
			"driver":   "",
			"uri":      "bolt://localhost:7687",
			"username": "",
			"password": "",
			"database": "",
		},
		"nlp": map[string]any{
			"models": map[string]any{
				"classifier": map[string]any{
					"provider":    "openai",
					"model":       "gpt-4o-mini",
					"temperature": 0.0,
					"max_tokens":  512,
					"enabled":     false,
				},
				"reranker": map[string]any{
					"provider":    "openai",
					"model":       "gpt-4o-mini",
					"temperature": 0.0,
					"max_tokens":  1024,
					"enabled":     false,
				},
			},
		},
		"embedding": map[string]any{
			"provider": "embedeverything",
			"model":    "all-MiniLM-L6-v2",
			"base_url": "embedeverything://",
		},
		"search": map[string]any{
			"default_k":            10,
			"strategy_timeout_ms":  300,
			"rerank_top_k":         20,
			"cache_ttl_seconds":    300,
			"cache_window_seconds": 60,
			"cache_size":           1000,
		},
		"graph": map[string]any{
			"cycle_detection_depth": 50,
			"traversal_depth":       3,
			"archive_path":          "",
			"export_dir":            "",
		},
		"telemetry": map[string]any{
			"parquet_path": "",
		},
		"circuit_breaker": map[string]any{
			"enabled":             true,
			"max_requests":        3,
			"interval":            60,
			"timeout":             30,
			"ready_to_trip_ratio": 0.6,
		},
		"alert": map[string]any{
			"enabled":   false,
			"smtp_host": "",
			"smtp_port": 587,
			"from":      "",
			"to":        []string{},
		},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configOutput
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".lattice.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	data, err := yaml.Marshal(defaultConfigDocument())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Wrote default configuration to", path)
	return nil
}
