// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-pilot CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/secrets"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets *secrets.Store

// secretDefault returns fallback when set, or the loaded secret for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets.Get(key)
}

// rootCmd is the base command for the research-pilot CLI.
var rootCmd = &cobra.Command{
	Use:   "research-pilot",
	Short: "AI-assisted multi-source research pipeline",
	Long: `research-pilot answers research questions by querying several independent
data sources in parallel, synthesizing the gathered material into a single
answer with a language model, and exposing the evolving result as a live feed.

Run "research-pilot serve" to expose the pipeline over HTTP, or
"research-pilot query" to run a single research question from the terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-pilot.yaml or ~/.config/research-pilot/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the research database (overrides config)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-pilot")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-pilot"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_PILOT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig builds the effective configuration: compiled defaults overlaid
// with the config file, env vars, and shared flags.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	cfg.Synthesis.APIKey = secretDefault("synthesis-api-key", cfg.Synthesis.APIKey)
	return cfg, nil
}

// buildLogger constructs the process logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zc.Level = parsed
	}
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
