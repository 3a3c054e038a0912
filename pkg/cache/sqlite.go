// Copyright 2026 Stints App. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/stints-app/cache-worker/pkg/fetch"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
    name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
    generation TEXT NOT NULL,
    key TEXT NOT NULL,
    seq INTEGER NOT NULL,
    method TEXT NOT NULL,
    request_url TEXT NOT NULL,
    request_header BLOB,
    status INTEGER NOT NULL,
    status_text TEXT NOT NULL,
    response_header BLOB,
    body BLOB,
    response_url TEXT NOT NULL,
    response_type TEXT NOT NULL,
    stored_at INTEGER NOT NULL,
    PRIMARY KEY (generation, key)
);
`

// SQLiteStorage is a Storage persisted in a SQLite database file.
type SQLiteStorage struct {
	sqlDB *sql.DB
	keys  *KeyGenerator
}

// OpenSQLite opens (creating if needed) a SQLite cache storage at path.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStorage{sqlDB: sqlDB, keys: NewKeyGenerator()}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Keys lists generation names in creation order.
func (s *SQLiteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM generations ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Open returns a handle on the named generation.
func (s *SQLiteStorage) Open(ctx context.Context, name string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sqliteGeneration{storage: s, name: name}, nil
}

// Delete removes a generation and its entries.
func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE generation = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete generation %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete generation %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

type sqliteGeneration struct {
	storage *SQLiteStorage
	name    string
}

func (g *sqliteGeneration) Name() string {
	return g.name
}

func (g *sqliteGeneration) Match(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	if !Cacheable(req) {
		return nil, nil
	}
	row := g.storage.sqlDB.QueryRowContext(ctx,
		`SELECT status, status_text, response_header, body, response_url, response_type
		   FROM entries WHERE generation = ? AND key = ?`,
		g.name, g.storage.keys.Generate(req))

	var (
		resp   fetch.Response
		header []byte
		typ    string
	)
	if err := row.Scan(&resp.Status, &resp.StatusText, &header, &resp.Body, &resp.URL, &typ); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("match in %s: %w", g.name, err)
	}
	h, err := decodeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("decode response header: %w", err)
	}
	resp.Header = h
	resp.Type = fetch.ResponseType(typ)
	return &resp, nil
}

func (g *sqliteGeneration) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	if !Cacheable(req) {
		return ErrMethodNotCacheable
	}
	if resp == nil {
		return ErrNilResponse
	}
	reqHeader, err := json.Marshal(req.Header)
	if err != nil {
		return fmt.Errorf("encode request header: %w", err)
	}
	respHeader, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("encode response header: %w", err)
	}

	tx, err := g.storage.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO generations (name, created_at) VALUES (?, ?)`, g.name, now); err != nil {
		return fmt.Errorf("create generation %s: %w", g.name, err)
	}

	key := g.storage.keys.Generate(req)
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (
		   generation, key, seq, method, request_url, request_header,
		   status, status_text, response_header, body, response_url, response_type, stored_at
		 ) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE generation = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (generation, key) DO UPDATE SET
		   request_header = excluded.request_header,
		   status = excluded.status,
		   status_text = excluded.status_text,
		   response_header = excluded.response_header,
		   body = excluded.body,
		   response_url = excluded.response_url,
		   response_type = excluded.response_type,
		   stored_at = excluded.stored_at`,
		g.name, key, g.name,
		strings.ToUpper(req.Method), req.URL.String(), reqHeader,
		resp.Status, resp.StatusText, respHeader, body, resp.URL, string(resp.Type),
		now,
	)
	if err != nil {
		return fmt.Errorf("put into %s: %w", g.name, err)
	}
	return tx.Commit()
}

func (g *sqliteGeneration) Delete(ctx context.Context, req *fetch.Request) (bool, error) {
	if !Cacheable(req) {
		return false, nil
	}
	res, err := g.storage.sqlDB.ExecContext(ctx,
		`DELETE FROM entries WHERE generation = ? AND key = ?`, g.name, g.storage.keys.Generate(req))
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", g.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *sqliteGeneration) Keys(ctx context.Context) ([]*fetch.Request, error) {
	rows, err := g.storage.sqlDB.QueryContext(ctx,
		`SELECT method, request_url, request_header FROM entries WHERE generation = ? ORDER BY seq`, g.name)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", g.name, err)
	}
	defer rows.Close()

	var reqs []*fetch.Request
	for rows.Next() {
		var (
			method, rawURL string
			header         []byte
		)
		if err := rows.Scan(&method, &rawURL, &header); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse stored url: %w", err)
		}
		h, err := decodeHeader(header)
		if err != nil {
			return nil, fmt.Errorf("decode request header: %w", err)
		}
		reqs = append(reqs, &fetch.Request{Method: method, URL: u, Header: h})
	}
	return reqs, rows.Err()
}

func decodeHeader(data []byte) (http.Header, error) {
	h := make(http.Header)
	if len(data) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	if h == nil {
		h = make(http.Header)
	}
	return h, nil
}
