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

package blob

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"path"
	"time"
)

// Getter loads a stored blob; it returns nil, nil when the key is unknown.
type Getter interface {
	Get(ctx context.Context, key string) (*Blob, error)
}

// Handler serves stored files. It expects to be mounted on a pattern with
// a trailing {path...} wildcard.
type Handler struct {
	store Getter
}

// NewHandler creates a file handler.
func NewHandler(store Getter) *Handler {
	return &Handler{store: store}
}

// ServeHTTP handles GET and HEAD requests for one stored file.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.PathValue("path")
	if err := ValidateKey(key); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b, err := h.store.Get(r.Context(), key)
	if err != nil {
		slog.Error("failed to load file", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if b == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", b.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(key), modTime(b.CreatedAt), bytes.NewReader(b.Data))
}

func modTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0)
	}
	return t
}
