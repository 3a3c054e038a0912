// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stints-app/cache-worker/pkg/errors"
)

// HTTPFetcher fetches requests over HTTP and classifies the response type
// relative to the origin the worker is serving.
type HTTPFetcher struct {
	client *http.Client
	origin *url.URL
}

// NewHTTPFetcher creates a fetcher for the given origin. A nil origin treats
// every response as same-origin. A zero timeout means no ceiling.
func NewHTTPFetcher(origin *url.URL, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		origin: origin,
	}
}

// Fetch performs the request. Any transport failure is returned as a
// network error; HTTP error statuses are returned as responses.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.ValidationError("request has no URL", nil)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, errors.NetworkError("failed to build request", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, errors.NetworkError("fetch "+req.URL.String(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError("read body of "+req.URL.String(), err)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	out := &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     resp.Header.Clone(),
		Body:       data,
		URL:        finalURL.String(),
		Type:       f.classify(finalURL, resp.Header),
	}
	if out.Type == TypeOpaque {
		// Opaque responses expose nothing to the worker.
		out.Status = 0
		out.StatusText = ""
		out.Header = make(http.Header)
		out.Body = nil
	}
	return out, nil
}

func (f *HTTPFetcher) classify(u *url.URL, header http.Header) ResponseType {
	if f.origin == nil || SameOrigin(f.origin, u) {
		return TypeBasic
	}
	if header.Get("Access-Control-Allow-Origin") != "" {
		return TypeCORS
	}
	return TypeOpaque
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}
