// Package main provides the cache-worker CLI application.
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/config"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/fetch"
	"github.com/stints-app/cache-worker/pkg/observability"
	"github.com/stints-app/cache-worker/pkg/worker"
)

// app holds the components every command is assembled from.
type app struct {
	cfg      *config.Config
	logger   observability.Logger
	metrics  *observability.Metrics
	storage  cache.Storage
	upstream *url.URL
}

func loadConfig() (*config.Config, error) {
	if rootOpts.config != "" {
		return config.Load(rootOpts.config)
	}
	return config.LoadFromEnv()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Global.LogLevel
	if rootOpts.logLevel != "" {
		level = rootOpts.logLevel
	}
	logger := observability.NewLogger(cmd.ErrOrStderr(), level)

	upstream, err := url.Parse(cfg.Proxy.Upstream)
	if err != nil {
		return nil, errors.ConfigError("invalid upstream URL", err)
	}

	storage, err := openStorage(cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug("cache storage opened",
		observability.String("driver", cfg.Store.Driver),
		observability.String("path", cfg.Store.Path))

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewMetrics(),
		storage:  storage,
		upstream: upstream,
	}, nil
}

// openStorage selects the cache backend named by the store driver.
func openStorage(cfg config.StoreConfig) (cache.Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		return cache.NewMemoryStorage(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.StorageError("create storage directory", err)
			}
		}
		s, err := cache.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, errors.StorageError("open sqlite storage", err)
		}
		return s, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}

// policy builds the routing policy from the worker config.
func (a *app) policy() worker.Policy {
	return worker.Policy{
		DevMode:          a.cfg.Worker.DevMode,
		PassthroughHosts: a.cfg.Worker.PassthroughHosts,
		StaticSuffixes:   a.cfg.Worker.StaticSuffixes,
	}
}

// newWorker creates a worker version for the configured cache name.
func (a *app) newWorker(clients *worker.Clients) (*worker.Worker, error) {
	precache, err := resolvePrecache(a.upstream, a.cfg.Worker.Precache)
	if err != nil {
		return nil, err
	}
	return worker.New(worker.Options{
		CacheName: a.cfg.Worker.CacheName,
		Policy:    a.policy(),
		Precache:  precache,
		Storage:   a.storage,
		Fetcher:   fetch.NewHTTPFetcher(a.upstream, a.cfg.Proxy.FetchTimeout),
		Clients:   clients,
		Tasks:     worker.NewDetached(0, a.logger),
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
}

// resolvePrecache turns precache entries, which may be paths, into absolute
// URLs on the upstream origin.
func resolvePrecache(base *url.URL, entries []string) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		ref, err := url.Parse(e)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid precache entry %q", e), err)
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}
