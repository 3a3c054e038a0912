// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/stints-app/cache-worker/pkg/errors"
	"github.com/stints-app/cache-worker/pkg/observability"
	"github.com/stints-app/cache-worker/pkg/worker"
)

const maxMessageSize = 64 * 1024

// GenerationsResponse is returned by the generations endpoint.
type GenerationsResponse struct {
	Current     string   `json:"current"`
	Generations []string `json:"generations"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Worker  string                 `json:"worker"`
	State   string                 `json:"state"`
	Cache   string                 `json:"cache"`
	Pending int                    `json:"pending_writes"`
	Metrics observability.Snapshot `json:"metrics"`
}

type openClientRequest struct {
	URL string `json:"url"`
}

func (s *Server) controlRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.prefix+"/message", s.handleMessage)
	mux.HandleFunc("GET "+s.prefix+"/generations", s.handleGenerations)
	mux.HandleFunc("GET "+s.prefix+"/status", s.handleStatus)
	mux.HandleFunc("GET "+s.prefix+"/clients", s.handleListClients)
	mux.HandleFunc("POST "+s.prefix+"/clients", s.handleOpenClient)
	mux.HandleFunc("DELETE "+s.prefix+"/clients/{id}", s.handleCloseClient)
	return mux
}

// httpReply is a reply port whose message becomes the HTTP response body.
type httpReply struct {
	mu     sync.Mutex
	value  any
	posted bool
}

func (p *httpReply) PostMessage(ctx context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.posted {
		return errors.MessageError("reply already sent", nil)
	}
	p.value = v
	p.posted = true
	return nil
}

func (p *httpReply) reply() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.posted
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	port := &httpReply{}
	msg, err := worker.ParseMessage(data, port)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := s.worker.Dispatch(r.Context(), worker.Event{
		Kind:     worker.EventMessage,
		Message:  msg,
		ClientID: r.Header.Get(ClientHeader),
	}); err != nil {
		s.logger.Warn("message failed",
			observability.String("type", msg.Type),
			observability.Err(err))
		status := http.StatusInternalServerError
		if errors.IsType(err, errors.ErrMessage) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	if v, ok := port.reply(); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	names, err := s.storage.Keys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, GenerationsResponse{
		Current:     s.worker.CacheName(),
		Generations: names,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Worker:  s.worker.ID(),
		State:   s.worker.State().String(),
		Cache:   s.worker.CacheName(),
		Pending: s.worker.Tasks().Active(),
		Metrics: s.metrics.Snapshot(),
	})
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worker.Clients().List())
}

func (s *Server) handleOpenClient(w http.ResponseWriter, r *http.Request) {
	var req openClientRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.ValidationError("malformed client", err))
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.ValidationError("client url is required", nil))
		return
	}
	cl := s.worker.Clients().Open(req.URL, "")
	writeJSON(w, http.StatusCreated, cl)
}

func (s *Server) handleCloseClient(w http.ResponseWriter, r *http.Request) {
	if !s.worker.Clients().Close(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, errors.ValidationError("unknown client", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
