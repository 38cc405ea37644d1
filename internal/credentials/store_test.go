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

package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/models"
)

type mockVerifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockVerifier) Connect(ctx context.Context, cfg models.MailboxConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func newTestStore(t *testing.T, v Verifier) *Store {
	t.Helper()
	keyring.MockInit()
	return NewStore(StoreConfig{Dir: t.TempDir(), Service: "mailimport-test", Verifier: v})
}

// TestConnect_PersistsAndLoads verifies the warm-start round trip.
func TestConnect_PersistsAndLoads(t *testing.T) {
	store := newTestStore(t, &mockVerifier{})

	cfg := models.IMAPAccount{Server: "imap.example.com", Port: 993, Username: "hr@example.com", Secret: "s3cret"}
	if _, err := store.Connect(context.Background(), cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}

	acc, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := acc.Config.(models.IMAPAccount)
	if !ok {
		t.Fatalf("expected IMAPAccount, got %T", acc.Config)
	}
	if got != cfg {
		t.Errorf("loaded %+v, want %+v", got, cfg)
	}
}

// TestConnect_SecretNotOnDisk verifies the slot file never holds the password.
func TestConnect_SecretNotOnDisk(t *testing.T) {
	store := newTestStore(t, &mockVerifier{})

	if _, err := store.Connect(context.Background(), models.GmailAccount{Username: "hr@example.com", Secret: "app-pass"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	if strings.Contains(string(data), "app-pass") {
		t.Errorf("secret written to slot file:\n%s", data)
	}

	info, err := os.Stat(store.path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("slot mode = %v, want 0600", info.Mode().Perm())
	}
}

// TestConnect_SingleSlot verifies a second connect overwrites the first.
func TestConnect_SingleSlot(t *testing.T) {
	store := newTestStore(t, &mockVerifier{})

	store.Connect(context.Background(), models.GmailAccount{Username: "first@example.com", Secret: "a"})
	store.Connect(context.Background(), models.OutlookAccount{Username: "second@example.com", Secret: "b"})

	acc, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if acc.Config.Provider() != models.ProviderOutlook || acc.Config.Identity() != "second@example.com" {
		t.Errorf("expected second account, got %s/%s", acc.Config.Provider(), acc.Config.Identity())
	}
	if acc.Config.Credential() != "b" {
		t.Errorf("secret = %q, want b", acc.Config.Credential())
	}
}

// TestConnect_ValidationFailsBeforeGateway verifies per-provider required fields.
func TestConnect_ValidationFailsBeforeGateway(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.MailboxConfig
	}{
		{"imap without server", models.IMAPAccount{Port: 993, Username: "u", Secret: "p"}},
		{"imap without port", models.IMAPAccount{Server: "imap.example.com", Username: "u", Secret: "p"}},
		{"gmail without secret", models.GmailAccount{Username: "u"}},
		{"outlook without username", models.OutlookAccount{Secret: "p"}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVerifier{}
			store := newTestStore(t, v)

			_, err := store.Connect(context.Background(), tt.cfg)
			if !errors.Is(err, gateway.ErrConnection) {
				t.Fatalf("expected ErrConnection, got %v", err)
			}
			if v.calls != 0 {
				t.Error("gateway should not be called for invalid settings")
			}
			if _, err := store.Load(); !errors.Is(err, ErrNoAccount) {
				t.Errorf("nothing should be stored, Load returned %v", err)
			}
		})
	}
}

// TestConnect_GatewayRejectionNotPersisted verifies rejected credentials are
// not saved.
func TestConnect_GatewayRejectionNotPersisted(t *testing.T) {
	store := newTestStore(t, &mockVerifier{err: errors.New("502 from gateway")})

	_, err := store.Connect(context.Background(), models.GmailAccount{Username: "hr@example.com", Secret: "x"})
	if !errors.Is(err, gateway.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoAccount) {
		t.Errorf("expected ErrNoAccount, got %v", err)
	}
}

// TestDisconnect_Idempotent verifies wiping an empty slot succeeds.
func TestDisconnect_Idempotent(t *testing.T) {
	store := newTestStore(t, &mockVerifier{})

	store.Connect(context.Background(), models.GmailAccount{Username: "hr@example.com", Secret: "x"})

	for i := 0; i < 2; i++ {
		if err := store.Disconnect(); err != nil {
			t.Fatalf("disconnect %d: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(store.path), slotFile)); !os.IsNotExist(err) {
		t.Error("slot file should be removed")
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoAccount) {
		t.Errorf("expected ErrNoAccount, got %v", err)
	}
}

func TestRememberAccountID(t *testing.T) {
	store := newTestStore(t, &mockVerifier{})

	if err := store.RememberAccountID("acc-1"); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount on empty slot, got %v", err)
	}

	store.Connect(context.Background(), models.GmailAccount{Username: "hr@example.com", Secret: "x"})
	if err := store.RememberAccountID("acc-1"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	acc, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if acc.AccountID != "acc-1" {
		t.Errorf("account id = %q, want acc-1", acc.AccountID)
	}
}
