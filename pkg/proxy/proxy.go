// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package proxy hosts a worker behind an HTTP listener. Every incoming
// request becomes a fetch event against the upstream origin; requests the
// worker declines are forwarded to the upstream untouched.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/stints-app/cache-worker/pkg/cache"
	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/fetch"
	"github.com/stints-app/cache-worker/pkg/observability"
	"github.com/stints-app/cache-worker/pkg/worker"
)

const (
	// SourceHeader reports whether a handled response came from the network
	// or from the cache.
	SourceHeader = "X-Cache-Worker-Source"
	// ClientHeader carries the client ID a request originates from.
	ClientHeader = "X-Cache-Worker-Client"

	SourceNetwork = "network"
	SourceCache   = "cache"

	// MaxBodySize limits request bodies read into a fetch event.
	MaxBodySize = 10 * 1024 * 1024
)

// hop-by-hop headers are never forwarded through a fetch event.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Options configures a Server.
type Options struct {
	Worker   *worker.Worker
	Storage  cache.Storage
	Upstream *url.URL
	// ControlPrefix is the path under which control endpoints are mounted.
	ControlPrefix string
	Logger        observability.Logger
	Metrics       *observability.Metrics
}

// Server is an http.Handler routing requests through a worker.
type Server struct {
	worker   *worker.Worker
	storage  cache.Storage
	upstream *url.URL
	prefix   string
	reverse  *httputil.ReverseProxy
	control  *http.ServeMux
	logger   observability.Logger
	metrics  *observability.Metrics
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Worker == nil {
		return nil, errors.ValidationError("worker is required", nil)
	}
	if opts.Storage == nil {
		return nil, errors.ValidationError("cache storage is required", nil)
	}
	if opts.Upstream == nil || opts.Upstream.Host == "" {
		return nil, errors.ValidationError("upstream URL is required", nil)
	}
	prefix := strings.TrimSuffix(opts.ControlPrefix, "/")
	if prefix == "" {
		prefix = "/__worker"
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		worker:   opts.Worker,
		storage:  opts.Storage,
		upstream: opts.Upstream,
		prefix:   prefix,
		logger:   logger.With(observability.String("component", "proxy")),
		metrics:  opts.Metrics,
	}
	s.reverse = httputil.NewSingleHostReverseProxy(opts.Upstream)
	s.reverse.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Warn("upstream request failed",
			observability.String("url", r.URL.String()),
			observability.Err(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	}
	s.control = s.controlRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == s.prefix || strings.HasPrefix(r.URL.Path, s.prefix+"/") {
		s.control.ServeHTTP(w, r)
		return
	}

	req, err := s.fetchRequest(r)
	if err != nil {
		s.logger.Warn("rejecting request", observability.Err(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.worker.Dispatch(r.Context(), worker.Event{
		Kind:     worker.EventFetch,
		Request:  req,
		ClientID: r.Header.Get(ClientHeader),
	})
	if !res.Handled && err == nil {
		s.reverse.ServeHTTP(w, r)
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsRecoverable(err) {
			status = http.StatusBadGateway
		}
		s.logger.Warn("fetch failed",
			observability.String("url", req.String()),
			observability.String("route", res.Route.String()),
			observability.Err(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	source := SourceNetwork
	if res.Action == worker.ActionServeCache {
		source = SourceCache
	}
	if res.Response == nil {
		w.Header().Set(SourceHeader, source)
		http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
		return
	}
	writeResponse(w, res.Response, source)
}

// fetchRequest converts an incoming request into a fetch request against
// the upstream origin.
func (s *Server) fetchRequest(r *http.Request) (*fetch.Request, error) {
	u := *s.upstream
	u.Path = singleJoiningSlash(s.upstream.Path, r.URL.Path)
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	u.Fragment = ""

	req := &fetch.Request{
		Method: r.Method,
		URL:    &u,
		Header: r.Header.Clone(),
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Del(ClientHeader)
	// Passthrough hosts match the host the client addressed, not the upstream.
	if req.Header.Get(worker.ForwardedHostHeader) == "" && r.Host != "" {
		req.Header.Set(worker.ForwardedHostHeader, r.Host)
	}

	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(body) > MaxBodySize {
			return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodySize)
		}
		req.Body = body
		// Declined requests are forwarded with the same body.
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	return req, nil
}

func writeResponse(w http.ResponseWriter, resp *fetch.Response, source string) {
	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Set(SourceHeader, source)

	status := resp.Status
	if status == 0 {
		// Opaque and error responses carry no status of their own.
		header.Del("Content-Length")
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(resp.Body))
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts the
// listener down and waits for pending cache writes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s,
	}

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("shutdown failed", observability.Err(err))
		}
	}()

	s.logger.Info("cache worker listening",
		observability.String("address", addr),
		observability.String("upstream", s.upstream.String()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.NetworkError("HTTP server error", err)
	}

	wg.Wait()
	s.worker.Close()
	return nil
}
