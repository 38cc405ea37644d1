// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blob stores original resume files in Postgres and serves them
// back over HTTP.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Blob is one stored file.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store keeps files in the blobs table.
type Store struct {
	pool    *pgxpool.Pool
	baseURL string
}

// NewStore creates a blob store. baseURL is the public prefix under which
// Handler is mounted, e.g. https://ats.example.com/files.
func NewStore(ctx context.Context, pool *pgxpool.Pool, baseURL string) (*Store, error) {
	s := &Store{pool: pool, baseURL: strings.TrimRight(baseURL, "/")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure blob schema: %w", err)
	}
	slog.Info("blob store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blobs (
			key          TEXT PRIMARY KEY,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			size         BIGINT NOT NULL,
			data         BYTEA NOT NULL,
			created_at   TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// Upload stores data under key and returns its public URL. An existing
// blob with the same key is replaced.
func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO blobs (key, content_type, size, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			size         = EXCLUDED.size,
			data         = EXCLUDED.data,
			created_at   = NOW()
	`, key, contentType, len(data), data)
	if err != nil {
		return "", fmt.Errorf("store blob %s: %w", key, err)
	}
	return PublicURL(s.baseURL, key), nil
}

// Get returns the blob stored under key, or nil if there is none.
func (s *Store) Get(ctx context.Context, key string) (*Blob, error) {
	var b Blob
	err := s.pool.QueryRow(ctx, `
		SELECT key, content_type, data, created_at FROM blobs WHERE key = $1
	`, key).Scan(&b.Key, &b.ContentType, &b.Data, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	return &b, nil
}

// ValidateKey rejects empty keys and keys that try to escape their prefix.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid blob key %q", key)
		}
	}
	return nil
}

// PublicURL joins baseURL and key, escaping each path segment.
func PublicURL(baseURL, key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segs, "/")
}
