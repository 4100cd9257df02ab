// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the marginalia CLI: vault-backed
// management of academic papers, their PDFs, and the background jobs that
// acquire them.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/marginalia/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Store

// secretDefault returns fallback when set, otherwise the secret for key.
func secretDefault(key, fallback string) string {
	return loadedSecrets.Default(key, fallback)
}

// rootCmd is the base command for the marginalia CLI.
var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Manage an academic paper vault and its PDF acquisition pipeline",
	Long: `marginalia keeps a vault of academic papers: bibliographic records in
SQLite, PDFs on disk, and background jobs tracking the work in between.

The find command runs the open-access acquisition waterfall (arXiv,
Unpaywall, Semantic Scholar, optional LLM fallback) for papers that do not
have a PDF yet; fetch downloads and validates a known URL directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./marginalia.yaml or ~/.config/marginalia/config.yaml)")
	rootCmd.PersistentFlags().String("vault", ".", "vault directory")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("marginalia")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "marginalia"))
		}
	}

	viper.SetEnvPrefix("MARGINALIA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogging(cmd *cobra.Command) {
	level := zerolog.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).Level(level).With().Timestamp().Logger()
}

// vaultDir resolves the vault directory: flag first, then config file.
func vaultDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("vault")
	if dir == "" || dir == "." {
		if cfg := viper.GetString("vault_dir"); cfg != "" {
			return cfg
		}
	}
	return dir
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
