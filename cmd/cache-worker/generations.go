// Package main provides the cache-worker CLI application.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var generationsJSON bool

// generationsCmd represents the generations command
var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "List cache generations",
	Long:  `List the cache generations in storage, oldest first, marking the current one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.storage.Keys(cmd.Context())
		if err != nil {
			return err
		}
		current := a.cfg.Worker.CacheName
		out := cmd.OutOrStdout()

		if generationsJSON {
			if names == nil {
				names = []string{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"current":     current,
				"generations": names,
			})
		}

		if len(names) == 0 {
			fmt.Fprintln(out, "no cache generations")
			return nil
		}
		for _, name := range names {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generationsCmd)
	generationsCmd.Flags().BoolVar(&generationsJSON, "json", false, "Print as JSON")
}
