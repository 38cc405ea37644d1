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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_YAMLWithEnvExpansion verifies YAML values and ${VAR} expansion.
func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
gateway:
  base_url: https://gateway.example.com/
  api_key: ${TEST_GATEWAY_KEY}
  timeout: 15s
redis:
  url: redis://cache:6379/1
  lists:
    notifications: toasts
credentials:
  keyring_service: recruiting-test
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TEST_GATEWAY_KEY", "secret-key")
	t.Setenv("AUTOMATION_POLL_INTERVAL", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "https://gateway.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.APIKey != "secret-key" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Gateway.APIKey)
	}
	if cfg.Gateway.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Gateway.Timeout)
	}
	if cfg.RedisURL != "redis://cache:6379/1" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.NotificationsList != "toasts" {
		t.Errorf("NotificationsList = %q, want toasts", cfg.NotificationsList)
	}
	if cfg.EventsList != "mailimport:events" {
		t.Errorf("EventsList = %q, want default", cfg.EventsList)
	}
	if cfg.KeyringService != "recruiting-test" {
		t.Errorf("KeyringService = %q", cfg.KeyringService)
	}
	if cfg.AutomationPollInterval != 45*time.Second {
		t.Errorf("AutomationPollInterval = %v, want 45s", cfg.AutomationPollInterval)
	}
}

// TestLoad_Defaults verifies the cache timings used by the dashboard.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GATEWAY_URL", "http://gateway:5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RecentImportsTTL != 5*time.Minute {
		t.Errorf("RecentImportsTTL = %v, want 5m", cfg.RecentImportsTTL)
	}
	if cfg.RecentImportsDebounce != time.Second {
		t.Errorf("RecentImportsDebounce = %v, want 1s", cfg.RecentImportsDebounce)
	}
	if cfg.RecentImportsInterval != 2*time.Minute {
		t.Errorf("RecentImportsInterval = %v, want 2m", cfg.RecentImportsInterval)
	}
	if cfg.Gateway.BreakerFailures != 5 {
		t.Errorf("BreakerFailures = %d, want 5", cfg.Gateway.BreakerFailures)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

// TestLoad_RequiresGateway verifies that a gateway URL is mandatory.
func TestLoad_RequiresGateway(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GATEWAY_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when no gateway is configured")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty = %q, want b", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}
