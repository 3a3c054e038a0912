// Package main provides the cache-worker CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stints-app/cache-worker/pkg/observability"
	"github.com/stints-app/cache-worker/pkg/proxy"
	"github.com/stints-app/cache-worker/pkg/worker"
)

// serveFlags holds the flags for the serve command
type serveFlags struct {
	listen string
	hold   bool
}

var serveOpts serveFlags

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker as an HTTP proxy in front of the upstream",
	Long: `Install a worker for the configured cache name and serve HTTP.

Requests are turned into fetch events. Static assets are served network first
and cached; when the upstream is unreachable they are served from the cache.
Requests the worker declines are forwarded to the upstream unchanged.
Passthrough hosts are matched against the host clients address the proxy by
(or X-Forwarded-Host), not against the upstream URL.

With --hold the new worker stays waiting after install until a SKIP_WAITING
message is posted to the control endpoint.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveOpts.listen, "listen", "l", "", "Listen address (overrides proxy.listen)")
	serveCmd.Flags().BoolVar(&serveOpts.hold, "hold", false, "Stay waiting after install until SKIP_WAITING")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     a.cfg.Telemetry.TracingEnabled,
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("tracing shutdown failed", observability.Err(err))
		}
	}()

	w, err := a.newWorker(worker.NewClients())
	if err != nil {
		return err
	}

	if _, err := w.Dispatch(ctx, worker.Event{Kind: worker.EventInstall}); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	if !serveOpts.hold {
		if _, err := w.Dispatch(ctx, worker.Event{Kind: worker.EventActivate}); err != nil {
			// Listing failures leave the worker active; keep serving.
			a.logger.Error("activate failed", observability.Err(err))
		}
	}
	a.logger.Info("worker ready",
		observability.String("cache", w.CacheName()),
		observability.String("state", w.State().String()),
		observability.Bool("dev_mode", a.cfg.Worker.DevMode))

	srv, err := proxy.New(proxy.Options{
		Worker:        w,
		Storage:       a.storage,
		Upstream:      a.upstream,
		ControlPrefix: a.cfg.Proxy.ControlPrefix,
		Logger:        a.logger,
		Metrics:       a.metrics,
	})
	if err != nil {
		return err
	}

	addr := a.cfg.Proxy.Listen
	if serveOpts.listen != "" {
		addr = serveOpts.listen
	}
	return srv.ListenAndServe(ctx, addr)
}
