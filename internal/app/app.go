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

// Package app wires the import components from configuration. Both the
// dashboard server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/talentdesk/mailimport/internal/automation"
	"github.com/talentdesk/mailimport/internal/blob"
	"github.com/talentdesk/mailimport/internal/bulkimport"
	"github.com/talentdesk/mailimport/internal/config"
	"github.com/talentdesk/mailimport/internal/conversion"
	"github.com/talentdesk/mailimport/internal/credentials"
	"github.com/talentdesk/mailimport/internal/dedup"
	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/notify"
	"github.com/talentdesk/mailimport/internal/recentimports"
	"github.com/talentdesk/mailimport/internal/resume"
	"github.com/talentdesk/mailimport/internal/session"
	"github.com/talentdesk/mailimport/internal/store"
)

// App holds the wired components.
type App struct {
	Config *config.Config

	Pool  *pgxpool.Pool
	Redis *redis.Client

	Gateway     *gateway.Client
	Store       *store.Store
	Blobs       *blob.Store
	Credentials *credentials.Store
	Claims      *dedup.Filter
	Lookup      *dedup.Lookup
	Publisher   *notify.Publisher
	Processor   *resume.Processor
	Conversion  *conversion.Service
	Recent      *recentimports.Cache
	Automation  *automation.Supervisor
	Session     *session.MailboxSession
	BulkImport  *bulkimport.Runner
}

// SetupLogging installs the JSON slog handler at the configured level.
func SetupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
}

// New connects to PostgreSQL and Redis and builds every component. The
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// --- PostgreSQL ---
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	a.Pool = pool
	if err := pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	// --- Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	a.Redis = redis.NewClient(opt)
	a.Publisher = notify.NewPublisher(a.Redis, cfg.NotificationsList, cfg.EventsList)
	if err := a.Publisher.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("connected to Redis")

	// --- Stores ---
	if a.Store, err = store.NewStore(ctx, pool); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialise candidate store: %w", err)
	}
	if a.Blobs, err = blob.NewStore(ctx, pool, cfg.FilesBaseURL); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialise file store: %w", err)
	}

	// --- Gateway ---
	a.Gateway = gateway.NewClient(ctx, gateway.ClientConfig{
		BaseURL:         cfg.Gateway.BaseURL,
		APIKey:          cfg.Gateway.APIKey,
		Timeout:         cfg.Gateway.Timeout,
		TokenURL:        cfg.Gateway.TokenURL,
		ClientID:        cfg.Gateway.ClientID,
		ClientSecret:    cfg.Gateway.ClientSecret,
		Scopes:          cfg.Gateway.Scopes,
		BreakerFailures: cfg.Gateway.BreakerFailures,
	})

	a.Credentials = credentials.NewStore(credentials.StoreConfig{
		Dir:      cfg.CredentialDir,
		Service:  cfg.KeyringService,
		Verifier: a.Gateway,
	})

	// --- Import pipeline ---
	a.Claims = dedup.NewFilter(a.Redis, cfg.ClaimTTL)
	a.Lookup = dedup.NewLookup(a.Store)
	a.Processor = resume.NewProcessor(a.Gateway, a.Blobs)
	a.Conversion = conversion.NewService(conversion.ServiceConfig{
		Store:  a.Store,
		Claims: a.Claims,
		Events: a.Publisher,
	})

	// --- Automation ---
	a.Recent = recentimports.New(a.Gateway, recentimports.Config{
		TTL:      cfg.RecentImportsTTL,
		Debounce: cfg.RecentImportsDebounce,
		Interval: cfg.RecentImportsInterval,
		Lookback: cfg.RecentImportsLookback,
	})
	a.Automation = automation.NewSupervisor(automation.Config{
		Gateway:  a.Gateway,
		Recent:   a.Recent,
		Notifier: a.Publisher,
		Interval: cfg.AutomationPollInterval,
		OnAccountID: func(id string) {
			if err := a.Credentials.RememberAccountID(id); err != nil {
				slog.Warn("failed to remember automation account id", "error", err)
			}
		},
	})

	a.Session = session.New(session.Config{
		Gateway:     a.Gateway,
		Credentials: a.Credentials,
		Dedup:       a.Lookup,
		Processor:   a.Processor,
		Saver:       a.Conversion,
		Automation:  a.Automation,
		Notifier:    a.Publisher,
	})

	a.BulkImport = bulkimport.NewRunner(bulkimport.RunnerConfig{
		Lister:    a.Gateway,
		Dedup:     a.Lookup,
		Processor: a.Processor,
		Saver:     a.Conversion,
		Rate:      cfg.ImportRate,
	})

	return a, nil
}

// AttachStored attaches the stored mailbox to the automation supervisor
// without listing the inbox.
func (a *App) AttachStored() (*models.MailboxAccount, error) {
	acc, err := a.Credentials.Load()
	if err != nil {
		return nil, err
	}
	a.Automation.Attach(*acc)
	return acc, nil
}

// Close releases the Redis and PostgreSQL connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
