// Package main provides the cache-worker CLI application.
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stints-app/cache-worker/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration files and CACHE_WORKER_* variables that were
applied, in precedence order, followed by the resulting configuration.

Variable values are not printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "# files:")
		for _, path := range configSources() {
			fmt.Fprintf(out, "#   %s\n", path)
		}
		names := make([]string, 0)
		for name := range config.GetEnvConfig() {
			names = append(names, name)
		}
		slices.Sort(names)
		fmt.Fprintln(out, "# environment:")
		for _, name := range names {
			fmt.Fprintf(out, "#   %s\n", name)
		}

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

// configSources lists the files loadConfig reads, lowest precedence first.
func configSources() []string {
	if rootOpts.config != "" {
		return []string{rootOpts.config}
	}
	paths := config.FindConfigPaths("")
	if explicit := os.Getenv(config.ConfigPathEnv); explicit != "" {
		// An explicit path replaces the project file.
		project := config.GetProjectConfigPath("")
		paths = slices.DeleteFunc(paths, func(p string) bool { return p == project })
		paths = append(paths, explicit)
	}
	return paths
}

func init() {
	rootCmd.AddCommand(configCmd)
}
