// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the claim-analyzer CLI. It turns
// research questions into ranked, annotated paper lists by querying
// academic APIs and adjudicating the results with a language model.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/claim-analyzer/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
// Environment variables take precedence; see secrets.Value.
var loadedSecrets map[string]string

// rootCmd is the base command for the claim-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "claim-analyzer",
	Short: "Rank academic papers against a research question",
	Long: `claim-analyzer analyzes research questions against the academic
literature. It formulates database-specific queries with a language model,
searches OpenAlex, Scopus, CORE, arXiv, and Semantic Scholar concurrently,
applies user-defined exclusion criteria and data extraction, and ranks the
surviving papers in a multi-round tournament.

The analyze subcommand handles single requests; batch processes a YAML
file of requests and writes JSON reports.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./claim-analyzer.yaml or ~/.config/claim-analyzer/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("claim-analyzer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "claim-analyzer"))
		}
	}

	viper.SetEnvPrefix("CLAIM_ANALYZER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
