// Copyright DTMBX, 2026. All rights reserved.

// Package main is the entry point for the evident CLI.
// Implements: prd001-ingestion, prd004-document-store, prd005-retrieval,
//             prd006-analysis (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DTMBX/Evident-sub002/internal/secrets"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API tokens loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the evident CLI.
var rootCmd = &cobra.Command{
	Use:   "evident",
	Short: "Citation-grounded document provenance and retrieval",
	Long: `evident ingests legal documents (court opinions, filings, evidence
records) into a content-addressed, provenance-tracked store, and serves
citation-ready retrieval and grounded analysis over them.

Each pipeline stage is a subcommand: ingest, retrieve, analyze, and
manifest. Every answer the pipeline produces traces back to a specific
document, page, and byte range.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evident.yaml or ~/.config/evident/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for durable state (default: ./data)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evident")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evident"))
		}
	}

	viper.SetEnvPrefix("EVIDENT")
	viper.AutomaticEnv()
	viper.SetDefault("data_dir", "data")
	viper.SetDefault("ingest.timeout", "60s")
	viper.SetDefault("ingest.user_agent", "evident/0.1")
	viper.SetDefault("ingest.fetch_delay", "1s")
	viper.SetDefault("ingest.concurrency", 4)
	viper.SetDefault("analysis.max_passages", 8)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig materializes the typed stage configuration from viper,
// rooted at the resolved data directory.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	dir := dataDir(cmd)
	return types.PipelineConfig{
		Ingest: types.IngestConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("ingest.timeout"),
				UserAgent: viper.GetString("ingest.user_agent"),
			},
			DataDir:     dir,
			FetchDelay:  viper.GetDuration("ingest.fetch_delay"),
			Concurrency: viper.GetInt("ingest.concurrency"),
		},
		Store: types.StoreConfig{
			DataDir:       dir,
			MaxResults:    viper.GetInt("store.max_results"),
			MinScore:      viper.GetFloat64("store.min_score"),
			BodyCacheSize: viper.GetInt("store.body_cache_size"),
		},
		Analysis: types.AnalysisConfig{
			MaxPassages:  viper.GetInt("analysis.max_passages"),
			MaxSentences: viper.GetInt("analysis.max_sentences"),
		},
	}
}

// dataDir resolves the durable-state directory: flag, then config/env,
// then the default.
func dataDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir
	}
	return viper.GetString("data_dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
