// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package fetch defines the request and response values the worker routes,
// and the network primitive that produces responses.
package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
)

// ResponseType marks where a response came from and how much of it is visible.
type ResponseType string

const (
	// TypeBasic is a same-origin response with readable headers and body.
	TypeBasic ResponseType = "basic"
	// TypeCORS is a cross-origin response shared through CORS.
	TypeCORS ResponseType = "cors"
	// TypeOpaque is a cross-origin response without CORS.
	TypeOpaque ResponseType = "opaque"
	// TypeOpaqueRedirect is a redirect that was not followed.
	TypeOpaqueRedirect ResponseType = "opaqueredirect"
	// TypeError is a network error response.
	TypeError ResponseType = "error"
	// TypeDefault is a response built locally rather than fetched.
	TypeDefault ResponseType = "default"
)

// Fetcher is the network primitive: request in, response or failure out.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request describes an outgoing resource request.
// Treat it as immutable; use Clone before handing it to anything that may
// consume the body.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest builds a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	return NewRequestWithMethod(http.MethodGet, rawURL)
}

// NewRequestWithMethod builds a request with the given method.
func NewRequestWithMethod(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}, nil
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := &Request{
		Method: r.Method,
		Header: r.Header.Clone(),
		Body:   cloneBytes(r.Body),
	}
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		c.URL = &u
	}
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return c
}

// String returns the full URL of the request.
func (r *Request) String() string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Response is a snapshot of a network response.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
	URL        string
	Type       ResponseType
}

// Clone returns a deep copy of the response. The body slice is never shared.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status:     r.Status,
		StatusText: r.StatusText,
		Header:     r.Header.Clone(),
		Body:       cloneBytes(r.Body),
		URL:        r.URL,
		Type:       r.Type,
	}
}

// Equal reports whether two responses carry the same status, type and body.
func (r *Response) Equal(o *Response) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Status == o.Status && r.Type == o.Type && bytes.Equal(r.Body, o.Body)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
