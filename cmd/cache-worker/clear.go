// Package main provides the cache-worker CLI application.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stints-app/cache-worker/pkg/worker"
)

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cache generation",
	Long:  `Send CLEAR_CACHE to a worker over the local cache storage and print its acknowledgment.`,
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

		reply := worker.ReplyFunc(func(ctx context.Context, v any) error {
			ack, ok := v.(worker.Ack)
			if !ok {
				return fmt.Errorf("unexpected reply %T", v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "caches cleared: success=%t\n", ack.Success)
			return nil
		})
		_, err = w.Dispatch(cmd.Context(), worker.Event{
			Kind: worker.EventMessage,
			Message: &worker.Message{
				Type:  worker.MessageClearCache,
				Ports: []worker.ReplyPort{reply},
			},
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
