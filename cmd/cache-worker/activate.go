// Package main provides the cache-worker CLI application.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stints-app/cache-worker/pkg/worker"
)

// activateCmd represents the activate command
var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Install and activate the configured cache version offline",
	Long: `Run the install and activate handlers against the cache storage without
serving. Every cache generation other than the configured cache name is
deleted, and the precache list, if any, is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := a.newWorker(nil)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx := cmd.Context()
		if _, err := w.Dispatch(ctx, worker.Event{Kind: worker.EventInstall}); err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
		if _, err := w.Dispatch(ctx, worker.Event{Kind: worker.EventActivate}); err != nil {
			return fmt.Errorf("activate failed: %w", err)
		}

		snap := a.metrics.Snapshot()
		fmt.Fprintf(cmd.OutOrStdout(), "activated %s (%d stale generations deleted)\n",
			w.CacheName(), snap.GenerationsFreed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
