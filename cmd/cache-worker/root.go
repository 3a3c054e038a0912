// Package main provides the cache-worker CLI application.
package main

import (
	"github.com/spf13/cobra"

	"github.com/stints-app/cache-worker/pkg/version"
)

// globalFlags holds flags shared by every command.
type globalFlags struct {
	config   string
	logLevel string
}

var rootOpts globalFlags

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cache-worker",
	Short: "Offline cache controller for the Stints web app",
	Long: `cache-worker sits between the Stints web app and its origin server.

It intercepts asset requests, serves them network first, keeps successful
static responses in a versioned cache and answers from that cache when the
network is unavailable. Cache generations left behind by earlier releases
are removed on activation.`,
	Version:       version.FullString(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.config, "config", "c", "", "Path to configuration file (default is ./.cache-worker.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}
