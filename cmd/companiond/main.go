// Companiond is the behavior and relationship progression engine for AI
// companion chat.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	companiond serve
//
//	# Configure via environment
//	COMPANIOND_SERVER_HTTP_PORT=9292 COMPANIOND_STORE_DRIVER=sqlite companiond serve
//
//	# Inspect or reset state in a sqlite store offline
//	companiond status --companion luna --user u-1
//	companiond reset --companion luna
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the YAML config file; empty uses ~/.config/companiond/config.yaml.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "companiond",
	Short: "Behavior and relationship progression engine for companion chat",
	Long: `companiond tracks how each companion's behaviors evolve and how each
companion-user bond progresses, serving both over an HTTP API.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		printVersion(cmd.OutOrStdout())
	},
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "companiond by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
