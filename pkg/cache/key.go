// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/stints-app/cache-worker/pkg/fetch"
)

// KeyGenerator derives cache keys from requests.
// Two requests share a key when method and URL (without fragment) match;
// headers do not take part.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a new key generator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		prefix: "sw",
	}
}

// Canonical returns the human-readable identity of a request.
func (kg *KeyGenerator) Canonical(req *fetch.Request) string {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if req.URL == nil {
		return method + " "
	}
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	return method + " " + u.String()
}

// Generate returns a fixed-length key for the request.
func (kg *KeyGenerator) Generate(req *fetch.Request) string {
	h := sha256.Sum256([]byte(kg.Canonical(req)))
	return kg.prefix + ":" + hex.EncodeToString(h[:])
}

// Cacheable reports whether req may be used as a cache key.
// Only GET requests are stored.
func Cacheable(req *fetch.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return req.Method == "" || strings.EqualFold(req.Method, http.MethodGet)
}

// CacheError represents a cache error.
type CacheError struct {
	Code string
}

func (e *CacheError) Error() string {
	return e.Code
}

var (
	// ErrMethodNotCacheable is returned by Put for non-GET requests.
	ErrMethodNotCacheable = &CacheError{Code: "METHOD_NOT_CACHEABLE"}
	// ErrNilResponse is returned by Put when there is nothing to store.
	ErrNilResponse = &CacheError{Code: "NIL_RESPONSE"}
	// ErrClosed is returned after the storage has been closed.
	ErrClosed = &CacheError{Code: "STORAGE_CLOSED"}
)
