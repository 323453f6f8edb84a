// Package cmd provides the CLI commands for the mandate authority service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mandate-authority/mandate-authority/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mandate-authority",
	Short: "Mandate Authority - policy-driven authority service for autonomous agents",
	Long: `Mandate Authority issues and enforces scoped, time-bounded mandates for
autonomous LLM agents: it sanitises the context an agent presents,
evaluates it against admin-authored rules, composes the matched
policies into a single authority, and persists the result as a
versioned mandate the agent's runtime can check and commit against.

Quick start:
  1. Create a config file: mandate-authority.yaml
  2. Run: mandate-authority serve

Configuration:
  Config is loaded from mandate-authority.yaml in the current directory,
  $HOME/.mandate-authority/, or /etc/mandate-authority/.

  Environment variables can override config values with the
  MANDATE_AUTHORITY_ prefix. Example: MANDATE_AUTHORITY_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the issuance server and admin HTTP surface
  seed        Load a YAML agent/policy/rule seed file
  hash-key    Generate SHA256 hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mandate-authority.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
