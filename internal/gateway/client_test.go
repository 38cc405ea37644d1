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

package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/talentdesk/mailimport/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(context.Background(), ClientConfig{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		HTTPClient:      server.Client(),
		BreakerFailures: 2,
	})
}

var gmail = models.GmailAccount{Username: "hr@example.com", Secret: "app-pass"}

// TestListMessages_DecodesWireFormat verifies both sender encodings and the
// API key header.
func TestListMessages_DecodesWireFormat(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(APIKeyHeader)
		if r.URL.Path != "/api/email/inbox/list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"emails":[
			{"id":"m1","from":{"name":"Jane Doe","address":"jane@example.com"},"subject":"CV attached",
			 "date":"2026-03-01T10:00:00Z","hasAttachments":true,
			 "attachments":[{"id":"a1","filename":"cv.pdf","contentType":"application/pdf","size":1200,"isResume":true}]},
			{"id":"m2","from":"Bob Smith <bob@example.com>","subject":"hello","date":"Sun, 01 Mar 2026 09:00:00 +0000"}
		]}`)
	})

	msgs, err := client.ListMessages(context.Background(), gmail, ListOptions{DateRange: "7days", OnlyWithAttachments: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("api key = %q, want test-key", gotKey)
	}
	if gotBody["username"] != "hr@example.com" || gotBody["provider"] != "gmail" {
		t.Errorf("connection params not sent: %v", gotBody)
	}

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].From.Name != "Jane Doe" || !msgs[0].Attachments[0].IsResume {
		t.Errorf("first message decoded wrong: %+v", msgs[0])
	}
	if msgs[1].From.Address != "bob@example.com" || msgs[1].From.Name != "Bob Smith" {
		t.Errorf("string sender decoded wrong: %+v", msgs[1].From)
	}
	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !msgs[1].ReceivedAt.Equal(want) {
		t.Errorf("received = %v, want %v", msgs[1].ReceivedAt, want)
	}
}

// TestConnect_RejectedIsConnectionError verifies 4xx maps to ErrConnection.
func TestConnect_RejectedIsConnectionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
	})

	err := client.Connect(context.Background(), gmail)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

// TestConnect_SuccessFalse verifies an explicit failure in a 200 body.
func TestConnect_SuccessFalse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"message":"IMAP login failed"}`)
	})

	err := client.Connect(context.Background(), gmail)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

// TestDownloadAttachment_DecodesBase64 verifies the content round trip.
func TestDownloadAttachment_DecodesBase64(t *testing.T) {
	payload := []byte("%PDF-1.4 resume")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var ref map[string]any
		json.NewDecoder(r.Body).Decode(&ref)
		if ref["messageId"] != "m1" || ref["attachmentId"] != "a1" {
			t.Errorf("unexpected ref %v", ref)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"filename":    "cv.pdf",
				"contentType": "application/pdf",
				"content":     base64.StdEncoding.EncodeToString(payload),
			},
		})
	})

	got, err := client.DownloadAttachment(context.Background(), gmail, "m1", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != string(payload) {
		t.Errorf("data = %q", got.Data)
	}
	if got.Size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", got.Size, len(payload))
	}
}

// TestStatusError_CarriesCode verifies non-2xx responses surface the status.
func TestStatusError_CarriesCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.MonitoredAddresses(context.Background(), false)
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
}

// TestNoCacheHeader verifies forced refreshes bypass intermediary caches.
func TestNoCacheHeader(t *testing.T) {
	var mu sync.Mutex
	var headers []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Cache-Control"))
		mu.Unlock()
		io.WriteString(w, `{"account":{"id":"acc-1","username":"hr@example.com","enabled":true}}`)
	})

	if _, err := client.GetAccount(context.Background(), "acc-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GetAccount(context.Background(), "acc-1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if headers[0] != "no-cache" || headers[1] != "" {
		t.Errorf("cache headers = %q", headers)
	}
}

// TestFindAccount_MatchesUsername verifies case-insensitive lookup and the
// not-found case.
func TestFindAccount_MatchesUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "" {
			t.Error("username query missing")
		}
		io.WriteString(w, `{"accounts":[{"id":"acc-1","email":"HR@example.com","provider":"gmail","enabled":false,"totalImported":4}]}`)
	})

	acc, err := client.FindAccount(context.Background(), "hr@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc == nil || acc.ID != "acc-1" || acc.TotalImported != 4 {
		t.Fatalf("unexpected account %+v", acc)
	}

	acc, err = client.FindAccount(context.Background(), "other@example.com")
	if err != nil || acc != nil {
		t.Fatalf("expected nil, nil for unknown user, got %+v, %v", acc, err)
	}
}

// TestRecentImports_SendsSince verifies the since parameter is RFC 3339.
func TestRecentImports_SendsSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got != "2026-03-01T12:00:00Z" {
			t.Errorf("since = %q", got)
		}
		io.WriteString(w, `{"count":7}`)
	})

	n, err := client.RecentImports(context.Background(), since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}

// TestBreaker_FailsFastAndDoesNotRetry verifies the breaker opens after
// consecutive 5xx responses and that no call is ever re-issued.
func TestBreaker_FailsFastAndDoesNotRetry(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "down", http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		if _, err := client.MonitoredAddresses(context.Background(), false); !IsStatus(err, http.StatusBadGateway) {
			t.Fatalf("call %d: expected 502, got %v", i, err)
		}
	}

	_, err := client.MonitoredAddresses(context.Background(), false)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once the breaker is open, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/api/email/inbox/list":                    "/api/email/inbox/list",
		"/api/email/automation/accounts/abc":       "/api/email/automation/accounts/{id}",
		"/api/email/automation/accounts/abc/check": "/api/email/automation/accounts/{id}/check",
		"/candidates/recent-imports":               "/candidates/recent-imports",
	}
	for in, want := range tests {
		if got := endpointLabel(in); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
