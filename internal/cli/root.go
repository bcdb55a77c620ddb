// Package cli implements the portfolio command line: the web server, schema
// and content management, admin accounts and analytics reports.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lukasito25/portfolio/internal/config"
)

// DefaultConfigPath is used when neither --config nor PORTFOLIO_CONFIG is set.
const DefaultConfigPath = "portfolio.yaml"

// globals holds the flags shared by every command.
type globals struct {
	configPath string
}

// loadConfig reads and validates the configuration.
func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Personal portfolio site",
		Long: `portfolio serves the marketing pages, blog, contact form, admin CMS,
analytics beacons and AI assistant of a personal portfolio site.

Configuration is read from a YAML file and PORTFOLIO_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("PORTFOLIO_CONFIG")
	if defaultPath == "" {
		defaultPath = DefaultConfigPath
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultPath, "Path to the configuration file")

	rootCmd.AddCommand(serveCmd(g))
	rootCmd.AddCommand(migrateCmd(g))
	rootCmd.AddCommand(seedCmd(g))
	rootCmd.AddCommand(adminCmd(g))
	rootCmd.AddCommand(analyticsCmd(g))
	rootCmd.AddCommand(configCmd(g))
	rootCmd.AddCommand(versionCmd(version))
	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func versionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "portfolio %s\n", version)
		},
	}
}
