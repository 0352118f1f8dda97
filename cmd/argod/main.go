// Argod is the Argo responder daemon.
//
// It listens for discovery probes on the configured transports, asks every
// loaded plugin for matching services, and delivers the responses to the
// probe's respond-to URLs.
//
// Usage:
//
//	argod run [flags]
//
// See 'argod --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/argo/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "argod",
	Short: "Argo responder daemon",
	Long: `The Argo responder daemon answers zero-config service discovery probes.

Probes arrive over one or more transports (multicast, Redis, AMQP). Each
probe is handed to the configured plugins, and the services they know about
are POSTed back to the probe's respond-to URLs.

Use 'argod init' to write a starter configuration, then 'argod run'.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to argod.yaml (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("argod %s (commit: %s)\n", version.Version, version.Commit)
	},
}
