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

// Package credentials persists the single connected mailbox between runs.
// Non-secret settings go to a YAML file; the secret goes to the OS keyring.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/models"
)

const (
	slotFile = "current-account.yaml"

	// keyringUser is the fixed keyring slot. Connecting a second mailbox
	// overwrites the first.
	keyringUser = "current-account"
)

// ErrNoAccount is returned by Load when no mailbox has been connected.
var ErrNoAccount = errors.New("no mailbox connected")

// Verifier checks mailbox credentials against the mail gateway.
type Verifier interface {
	Connect(ctx context.Context, cfg models.MailboxConfig) error
}

// StoreConfig holds the configuration for the credential store.
type StoreConfig struct {
	Dir      string
	Service  string
	Verifier Verifier
}

// Store is a single-slot mailbox credential store.
type Store struct {
	path     string
	service  string
	verifier Verifier

	mu sync.Mutex
}

// NewStore creates a credential store rooted at cfg.Dir.
func NewStore(cfg StoreConfig) *Store {
	service := cfg.Service
	if service == "" {
		service = "mailimport"
	}
	return &Store{
		path:     filepath.Join(cfg.Dir, slotFile),
		service:  service,
		verifier: cfg.Verifier,
	}
}

// slot is the on-disk form. The password is never written here.
type slot struct {
	models.ConnectionParams `yaml:",inline"`
	AccountID               string `yaml:"account_id,omitempty"`
}

// Connect validates cfg, verifies it with the gateway and, only on success,
// persists it over whatever was stored before.
func (s *Store) Connect(ctx context.Context, cfg models.MailboxConfig) (*models.MailboxAccount, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no mailbox settings", gateway.ErrConnection)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrConnection, err)
	}

	if s.verifier != nil {
		if err := s.verifier.Connect(ctx, cfg); err != nil {
			if errors.Is(err, gateway.ErrConnection) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", gateway.ErrConnection, err)
		}
	}

	if err := s.save(cfg); err != nil {
		return nil, err
	}

	slog.Info("mailbox connected",
		"provider", cfg.Provider(),
		"username", cfg.Identity(),
	)

	return &models.MailboxAccount{Config: cfg}, nil
}

func (s *Store) save(cfg models.MailboxConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	data, err := yaml.Marshal(slot{ConnectionParams: models.Params(cfg)})
	if err != nil {
		return fmt.Errorf("marshal credential slot: %w", err)
	}

	if err := keyring.Set(s.service, keyringUser, cfg.Credential()); err != nil {
		return fmt.Errorf("store secret in keyring: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write credential slot: %w", err)
	}
	return nil
}

// Load returns the stored mailbox, or ErrNoAccount.
func (s *Store) Load() (*models.MailboxAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("read credential slot: %w", err)
	}

	var stored slot
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse credential slot: %w", err)
	}

	secret, err := keyring.Get(s.service, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("read secret from keyring: %w", err)
	}

	params := stored.ConnectionParams
	params.Password = secret
	cfg, err := params.Config()
	if err != nil {
		return nil, fmt.Errorf("credential slot: %w", err)
	}

	return &models.MailboxAccount{Config: cfg, AccountID: stored.AccountID}, nil
}

// RememberAccountID records the gateway's automation account id alongside
// the stored mailbox so warm starts can skip the username lookup.
func (s *Store) RememberAccountID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoAccount
	}
	if err != nil {
		return fmt.Errorf("read credential slot: %w", err)
	}

	var stored slot
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse credential slot: %w", err)
	}
	if stored.AccountID == id {
		return nil
	}
	stored.AccountID = id

	out, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal credential slot: %w", err)
	}
	return os.WriteFile(s.path, out, 0600)
}

// Disconnect wipes the slot. Wiping an empty slot is not an error.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete secret from keyring: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential slot: %w", err)
	}

	slog.Info("mailbox disconnected")
	return nil
}
