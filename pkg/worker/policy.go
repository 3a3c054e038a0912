// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package worker

import (
	"strings"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

// ForwardedHostHeader carries the host the client addressed when a proxy
// has rewritten the request URL to its upstream.
const ForwardedHostHeader = "X-Forwarded-Host"

// Route is the routing rule a request falls under.
type Route int

const (
	// RouteIgnore leaves the request to the host's default network path.
	RouteIgnore Route = iota
	// RoutePassthrough is network first, cache only when the network fails.
	RoutePassthrough
	// RouteStaticAsset is network first with write-back of cacheable responses.
	RouteStaticAsset
)

func (r Route) String() string {
	switch r {
	case RouteIgnore:
		return "ignore"
	case RoutePassthrough:
		return "passthrough"
	case RouteStaticAsset:
		return "static"
	default:
		return "unknown"
	}
}

// Action describes where the response handed to the client comes from.
type Action int

const (
	// ActionIgnore means no response is supplied.
	ActionIgnore Action = iota
	// ActionServeNetwork serves the network response.
	ActionServeNetwork
	// ActionServeCache serves the result of a cache lookup.
	ActionServeCache
)

func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionServeNetwork:
		return "network"
	case ActionServeCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Decision is the outcome of routing one request after the network answered.
type Decision struct {
	Action Action
	// WriteBack asks for a copy of the network response to be stored in the
	// current generation without delaying the client.
	WriteBack bool
}

// Policy is the request routing policy. The zero value routes nothing
// through passthrough and treats nothing as static; use DefaultPolicy.
type Policy struct {
	// DevMode sends every request through passthrough.
	DevMode bool
	// PassthroughHosts are substrings of the client-facing host that force
	// passthrough. Matching ignores case.
	PassthroughHosts []string
	// StaticSuffixes are substrings of the full URL marking static assets.
	StaticSuffixes []string
}

// DefaultPolicy returns the production policy: localhost passthrough and
// .js, .css, .html static assets.
func DefaultPolicy() Policy {
	return Policy{
		PassthroughHosts: []string{"localhost"},
		StaticSuffixes:   []string{".js", ".css", ".html"},
	}
}

// Route classifies a request. Rules are evaluated in order: passthrough,
// static asset, ignore.
func (p Policy) Route(req *fetch.Request) Route {
	if req == nil || req.URL == nil {
		return RouteIgnore
	}
	if p.DevMode {
		return RoutePassthrough
	}
	host := clientHost(req)
	for _, h := range p.PassthroughHosts {
		if strings.Contains(host, strings.ToLower(h)) {
			return RoutePassthrough
		}
	}

	// Raw substring match on the whole URL, query string included.
	full := req.URL.String()
	for _, s := range p.StaticSuffixes {
		if strings.Contains(full, s) {
			return RouteStaticAsset
		}
	}
	return RouteIgnore
}

// clientHost returns the lowercased host the client addressed: the first
// ForwardedHostHeader entry when present, otherwise the URL host.
// url.Parse keeps hosts as written.
func clientHost(req *fetch.Request) string {
	host := req.URL.Host
	if fwd := req.Header.Get(ForwardedHostHeader); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		host = strings.TrimSpace(first)
	}
	return strings.ToLower(host)
}

// Decide returns what to do once the network has answered (resp) or failed
// (netErr) for a request on the given route.
func Decide(route Route, resp *fetch.Response, netErr error) Decision {
	switch route {
	case RoutePassthrough:
		if netErr != nil {
			return Decision{Action: ActionServeCache}
		}
		return Decision{Action: ActionServeNetwork}
	case RouteStaticAsset:
		if netErr != nil {
			return Decision{Action: ActionServeCache}
		}
		return Decision{Action: ActionServeNetwork, WriteBack: Cacheable(resp)}
	default:
		return Decision{Action: ActionIgnore}
	}
}

// Cacheable reports whether a response may be written to the cache:
// status exactly 200 and type basic.
func Cacheable(resp *fetch.Response) bool {
	return resp != nil && resp.Status == 200 && resp.Type == fetch.TypeBasic
}
