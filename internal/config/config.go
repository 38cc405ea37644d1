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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayConfig holds settings for the external mail gateway.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Optional OAuth2 client-credentials in front of the gateway. When
	// TokenURL is empty the API key alone is used.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Consecutive failures before the circuit breaker opens.
	BreakerFailures uint32
}

// Config holds all configuration for the email import service.
type Config struct {
	Gateway GatewayConfig

	// Postgres (candidates, applications, blobs)
	DatabaseURL string

	// Redis
	RedisURL          string
	NotificationsList string
	EventsList        string
	ClaimTTL          time.Duration

	// Credential slot
	CredentialDir  string
	KeyringService string

	// Public prefix for stored resume files
	FilesBaseURL string

	// Automation
	AutomationPollInterval time.Duration

	// Recent imports
	RecentImportsTTL      time.Duration
	RecentImportsDebounce time.Duration
	RecentImportsInterval time.Duration
	RecentImportsLookback time.Duration

	// Bulk import throttle, attachments per second
	ImportRate float64

	// Server
	Port     int
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Gateway struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
		OAuth   struct {
			TokenURL     string   `yaml:"token_url"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"oauth"`
	} `yaml:"gateway"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL   string `yaml:"url"`
		Lists struct {
			Notifications string `yaml:"notifications"`
			Events        string `yaml:"events"`
		} `yaml:"lists"`
	} `yaml:"redis"`
	Credentials struct {
		Dir            string `yaml:"dir"`
		KeyringService string `yaml:"keyring_service"`
	} `yaml:"credentials"`
	Files struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"files"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings. A missing config file is not
// an error; everything can be supplied through the environment.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// env-only
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		Gateway: GatewayConfig{
			BaseURL:         strings.TrimRight(firstNonEmpty(raw.Gateway.BaseURL, os.Getenv("GATEWAY_URL")), "/"),
			APIKey:          firstNonEmpty(raw.Gateway.APIKey, os.Getenv("GATEWAY_API_KEY")),
			Timeout:         parseDurationOr(raw.Gateway.Timeout, envOrDefaultDuration("GATEWAY_TIMEOUT", 60*time.Second)),
			TokenURL:        firstNonEmpty(raw.Gateway.OAuth.TokenURL, os.Getenv("GATEWAY_TOKEN_URL")),
			ClientID:        firstNonEmpty(raw.Gateway.OAuth.ClientID, os.Getenv("GATEWAY_CLIENT_ID")),
			ClientSecret:    firstNonEmpty(raw.Gateway.OAuth.ClientSecret, os.Getenv("GATEWAY_CLIENT_SECRET")),
			Scopes:          raw.Gateway.OAuth.Scopes,
			BreakerFailures: uint32(envOrDefaultInt("GATEWAY_BREAKER_FAILURES", 5)),
		},
		DatabaseURL:       firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/recruiting")),
		RedisURL:          firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		NotificationsList: firstNonEmpty(raw.Redis.Lists.Notifications, envOrDefault("NOTIFICATIONS_LIST", "mailimport:notifications")),
		EventsList:        firstNonEmpty(raw.Redis.Lists.Events, envOrDefault("EVENTS_LIST", "mailimport:events")),
		ClaimTTL:          envOrDefaultDuration("CLAIM_TTL", 24*time.Hour),
		CredentialDir:     firstNonEmpty(raw.Credentials.Dir, envOrDefault("CREDENTIAL_DIR", defaultCredentialDir())),
		KeyringService:    firstNonEmpty(raw.Credentials.KeyringService, envOrDefault("KEYRING_SERVICE", "mailimport")),
		FilesBaseURL:      strings.TrimRight(firstNonEmpty(raw.Files.BaseURL, envOrDefault("FILES_BASE_URL", "http://localhost:8080/files")), "/"),

		AutomationPollInterval: envOrDefaultDuration("AUTOMATION_POLL_INTERVAL", 30*time.Second),

		RecentImportsTTL:      envOrDefaultDuration("RECENT_IMPORTS_TTL", 5*time.Minute),
		RecentImportsDebounce: envOrDefaultDuration("RECENT_IMPORTS_DEBOUNCE", time.Second),
		RecentImportsInterval: envOrDefaultDuration("RECENT_IMPORTS_INTERVAL", 2*time.Minute),
		RecentImportsLookback: envOrDefaultDuration("RECENT_IMPORTS_LOOKBACK", 24*time.Hour),

		ImportRate: envOrDefaultFloat("IMPORT_RATE", 2),

		Port:     envOrDefaultInt("PORT", 8080),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.Gateway.BaseURL == "" {
		return nil, fmt.Errorf("no mail gateway configured: set gateway.base_url or GATEWAY_URL")
	}

	return cfg, nil
}

func defaultCredentialDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mailimport"
	}
	return filepath.Join(dir, "mailimport")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseDurationOr(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
