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
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type mockGetter struct {
	mu    sync.Mutex
	blobs map[string]*Blob
	err   error
}

func (m *mockGetter) Get(ctx context.Context, key string) (*Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.blobs[key], nil
}

func newFileServer(g Getter) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("/files/{path...}", NewHandler(g))
	return httptest.NewServer(mux)
}

func TestHandler_ServesStoredFile(t *testing.T) {
	key := "email-attachments/msg-1/1700000000000_cv.pdf"
	g := &mockGetter{blobs: map[string]*Blob{
		key: {Key: key, ContentType: "application/pdf", Data: []byte("%PDF-1.7"), CreatedAt: time.Now()},
	}}
	server := newFileServer(g)
	defer server.Close()

	resp, err := http.Get(server.URL + "/files/" + key)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "%PDF-1.7" {
		t.Errorf("body = %q", body)
	}
}

func TestHandler_NotFound(t *testing.T) {
	server := newFileServer(&mockGetter{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/files/email-attachments/missing.pdf")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandler_StoreError(t *testing.T) {
	server := newFileServer(&mockGetter{err: errors.New("db down")})
	defer server.Close()

	resp, err := http.Get(server.URL + "/files/a/b.pdf")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHandler_RejectsPost(t *testing.T) {
	server := newFileServer(&mockGetter{})
	defer server.Close()

	resp, err := http.Post(server.URL+"/files/a.pdf", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"a.pdf", "email-attachments/m1/1_cv.pdf"}
	invalid := []string{"", "/abs", "a//b", "a/../b", "./a", "a/"}

	for _, k := range valid {
		if err := ValidateKey(k); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", k, err)
		}
	}
	for _, k := range invalid {
		if err := ValidateKey(k); err == nil {
			t.Errorf("ValidateKey(%q) should fail", k)
		}
	}
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("http://localhost:8080/files/", "email-attachments/m 1/1_my cv.pdf")
	want := "http://localhost:8080/files/email-attachments/m%201/1_my%20cv.pdf"
	if got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}
