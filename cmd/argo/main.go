// Argo is the client side of Argo service discovery.
//
// It sends probes over any built-in transport, runs the local response
// listener that responders POST back to, and shows what answered either as
// a one-shot report or in an interactive browser.
//
// Usage:
//
//	argo [command] [flags]
//
// Set ARGO_LOG_LEVEL=debug to see protocol logging on stderr.
// See 'argo --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "argo",
	Short: "Argo service discovery client",
	Long: `Discover services on the network with Argo probes.

A probe names the service contracts or instances it wants (or nothing, to
ask for everything) and the URL responders should POST their answers to.
'argo probe' runs a listener on that URL for a few seconds and prints what
came back; 'argo browse' keeps it running in an interactive view.`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("argo %s (commit: %s)\n", version.Version, version.Commit)
	},
}
