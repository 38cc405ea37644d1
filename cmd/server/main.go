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

// Email import service.
//
// Entry point for the dashboard service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and Redis
//  3. Restores the stored mailbox session, if any
//  4. Runs the recent-imports refresh loop
//  5. Serves the dashboard API, stored files, health and metrics
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/talentdesk/mailimport/internal/app"
	"github.com/talentdesk/mailimport/internal/blob"
	"github.com/talentdesk/mailimport/internal/config"
	"github.com/talentdesk/mailimport/internal/httpapi"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		app.SetupLogging("info")
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg.LogLevel)

	slog.Info("starting email import service",
		"gateway", cfg.Gateway.BaseURL,
		"poll_interval", cfg.AutomationPollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Warm start ---
	// Restore reads the server's automation state before the first poll.
	// A revoked credential shows up as a fetch error; the session stays
	// connected so the user can disconnect from the dashboard.
	restored, err := a.Session.Restore(ctx)
	switch {
	case err != nil:
		slog.Warn("stored mailbox restored with errors", "error", err)
	case restored:
		slog.Info("stored mailbox restored")
	default:
		slog.Info("no stored mailbox, waiting for connect")
	}

	// --- Background refresh ---
	go a.Recent.Run(ctx)

	// --- API ---
	handler := httpapi.NewHandler(httpapi.HandlerConfig{
		Session:    a.Session,
		Automation: a.Automation,
		Converter:  a.Conversion,
		Recent:     a.Recent,
		Files:      blob.NewHandler(a.Blobs),
		Checks: []httpapi.Check{
			{Name: "redis", Ping: a.Publisher.Ping},
			{Name: "postgres", Ping: a.Pool.Ping},
		},
	})
	ready, done, err := httpapi.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready

	<-ctx.Done()
	slog.Info("received shutdown signal")

	// Stops the poll timer and cancels in-flight automation calls.
	a.Automation.Detach()
	<-done

	slog.Info("email import service stopped")
}
