// Package main is the entry point for the cache-worker CLI.
package main

import (
	"log/slog"
	"os"
	"runtime/debug"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC", "error", r, "stack", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
