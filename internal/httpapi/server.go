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

package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/session", h.getSession)
	mux.HandleFunc("POST /api/session/connect", h.connect)
	mux.HandleFunc("POST /api/session/disconnect", h.disconnect)

	mux.HandleFunc("GET /api/messages", h.listMessages)
	mux.HandleFunc("POST /api/messages", h.fetchMessages)
	mux.HandleFunc("POST /api/messages/toggle-all", h.toggleAll)
	mux.HandleFunc("POST /api/messages/{id}/toggle", h.toggleMessage)
	mux.HandleFunc("POST /api/messages/{id}/process", h.processMessage)

	mux.HandleFunc("POST /api/candidates", h.saveCandidate)
	mux.HandleFunc("POST /api/applications/{id}/convert", h.convertApplication)

	mux.HandleFunc("GET /api/automation", h.getAutomation)
	mux.HandleFunc("POST /api/automation/toggle", h.toggleAutomation)
	mux.HandleFunc("POST /api/automation/refresh", h.refreshAutomation)
	mux.HandleFunc("POST /api/automation/accounts/{id}/check", h.checkAccount)
	mux.HandleFunc("POST /api/automation/monitored/remove", h.removeMonitored)
	mux.HandleFunc("GET /api/automation/recent-imports", h.recentImports)

	if h.files != nil {
		mux.Handle("/files/{path...}", h.files)
	}
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Serve binds port and serves the API until ctx is done. ready is closed
// once the listener is bound, done once shutdown has finished.
func Serve(ctx context.Context, port int, handler *Handler) (ready, done <-chan struct{}, err error) {
	server := &http.Server{
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // processing waits on the resume parser
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind api port %d: %w", port, err)
	}

	readyCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		<-ctx.Done()
		slog.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("api server shutdown error", "error", err)
		}
	}()

	go func() {
		slog.Info("api server listening", "port", port)
		close(readyCh)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("api server error", "error", err)
		}
	}()

	return readyCh, doneCh, nil
}
