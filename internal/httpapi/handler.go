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

// Package httpapi serves the JSON dashboard API over the mailbox session,
// the automation supervisor and the conversion service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/talentdesk/mailimport/internal/automation"
	"github.com/talentdesk/mailimport/internal/conversion"
	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/inbox"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/session"
	"github.com/talentdesk/mailimport/internal/store"
)

// maxBody caps request bodies. Requests carry filters and parsed
// candidates, never files.
const maxBody = 1 << 20

// Session is the mailbox session surface the API drives.
type Session interface {
	Connect(ctx context.Context, cfg models.MailboxConfig) (*models.MailboxAccount, error)
	Disconnect(ctx context.Context) error
	Account() *models.MailboxAccount
	FetchMessages(ctx context.Context, f inbox.Filters) ([]models.InboxMessage, error)
	Refilter(f inbox.Filters) []models.InboxMessage
	Messages() []models.InboxMessage
	Filters() inbox.Filters
	ToggleOne(id string) error
	ToggleAll() []string
	Selected() []string
	ProcessMessage(ctx context.Context, id string) ([]models.ParsedCandidate, error)
	SaveCandidate(ctx context.Context, messageID string, p models.ParsedCandidate) (*models.Candidate, error)
}

// Automation is the supervisor surface the API drives.
type Automation interface {
	ToggleAutomation(ctx context.Context, enabled bool) error
	RefreshStatus(ctx context.Context, forceNoCache bool) (models.AutomationStatus, error)
	ForceCheckNow(ctx context.Context, accountID string) (*models.CheckResult, error)
	RemoveMonitoredAddress(ctx context.Context, address string) ([]string, error)
	Status() models.AutomationStatus
	State() automation.State
	AccountID() string
}

// Converter turns approved applications into candidates.
type Converter interface {
	ConvertApprovedApplicationToCandidate(ctx context.Context, applicationID string) (string, error)
}

// RecentImports reads the recent-imports counter.
type RecentImports interface {
	Get(ctx context.Context) (int, error)
}

// Check is a named dependency check for /health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HandlerConfig holds the API collaborators. Recent and Files are optional.
type HandlerConfig struct {
	Session    Session
	Automation Automation
	Converter  Converter
	Recent     RecentImports
	Files      http.Handler
	Checks     []Check
}

// Handler serves the dashboard API.
type Handler struct {
	session    Session
	automation Automation
	converter  Converter
	recent     RecentImports
	files      http.Handler
	checks     []Check
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		session:    cfg.Session,
		automation: cfg.Automation,
		converter:  cfg.Converter,
		recent:     cfg.Recent,
		files:      cfg.Files,
		checks:     cfg.Checks,
	}
}

type sessionView struct {
	Connected bool            `json:"connected"`
	Provider  models.Provider `json:"provider,omitempty"`
	Username  string          `json:"username,omitempty"`
	AccountID string          `json:"accountId,omitempty"`
	Filters   inbox.Filters   `json:"filters"`
}

func (h *Handler) describeSession() sessionView {
	v := sessionView{Filters: h.session.Filters()}
	if acc := h.session.Account(); acc != nil {
		v.Connected = true
		v.Provider = acc.Config.Provider()
		v.Username = acc.Config.Identity()
		v.AccountID = acc.AccountID
	}
	return v
}

// connect handles POST /api/session/connect.
func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var params models.ConnectionParams
	if !decode(w, r, &params) {
		return
	}
	cfg, err := params.Config()
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	if _, err := h.session.Connect(r.Context(), cfg); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, h.describeSession())
}

// disconnect handles POST /api/session/disconnect.
func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Disconnect(r.Context()); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, h.describeSession())
}

// getSession handles GET /api/session.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.describeSession())
}

// listMessages handles GET /api/messages. Query filters are applied to the
// cached listing without contacting the gateway.
func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var msgs []models.InboxMessage
	if len(q) == 0 {
		msgs = h.session.Messages()
	} else {
		f := inbox.Filters{
			Search:              q.Get("search"),
			DateRange:           inbox.DateRange(q.Get("dateRange")),
			OnlyWithAttachments: q.Get("hasAttachments") == "true",
			OnlyJobRelated:      q.Get("jobRelated") == "true",
		}
		if !f.DateRange.Valid() {
			writeError(w, errors.New("unknown date range "+string(f.DateRange)), http.StatusBadRequest)
			return
		}
		msgs = h.session.Refilter(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": nonNilMessages(msgs),
		"filters":  h.session.Filters(),
		"selected": h.session.Selected(),
	})
}

// fetchMessages handles POST /api/messages.
func (h *Handler) fetchMessages(w http.ResponseWriter, r *http.Request) {
	f := h.session.Filters()
	if !decodeOptional(w, r, &f) {
		return
	}
	msgs, err := h.session.FetchMessages(r.Context(), f)
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": nonNilMessages(msgs),
		"filters":  f,
	})
}

// toggleMessage handles POST /api/messages/{id}/toggle.
func (h *Handler) toggleMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ToggleOne(r.PathValue("id")); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selected": h.session.Selected()})
}

// toggleAll handles POST /api/messages/toggle-all.
func (h *Handler) toggleAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"selected": h.session.ToggleAll()})
}

// processMessage handles POST /api/messages/{id}/process. Candidates
// produced before a failure are returned alongside the error text.
func (h *Handler) processMessage(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.session.ProcessMessage(r.Context(), r.PathValue("id"))
	if err != nil && len(candidates) == 0 {
		writeError(w, err, statusFor(err))
		return
	}
	resp := map[string]any{"candidates": candidates}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type saveRequest struct {
	MessageID string                 `json:"messageId"`
	Candidate models.ParsedCandidate `json:"candidate"`
}

// saveCandidate handles POST /api/candidates.
func (h *Handler) saveCandidate(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.session.SaveCandidate(r.Context(), req.MessageID, req.Candidate)
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// convertApplication handles POST /api/applications/{id}/convert. A
// candidate created before the application could be marked is reported
// with the error.
func (h *Handler) convertApplication(w http.ResponseWriter, r *http.Request) {
	id, err := h.converter.ConvertApprovedApplicationToCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		resp := map[string]any{"error": err.Error()}
		if id != "" {
			resp["candidateId"] = id
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"candidateId": id})
}

type automationView struct {
	State     string                  `json:"state"`
	AccountID string                  `json:"accountId,omitempty"`
	Status    models.AutomationStatus `json:"status"`
}

func (h *Handler) describeAutomation() automationView {
	return automationView{
		State:     h.automation.State().String(),
		AccountID: h.automation.AccountID(),
		Status:    h.automation.Status(),
	}
}

// getAutomation handles GET /api/automation. It returns the cached status.
func (h *Handler) getAutomation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.describeAutomation())
}

// toggleAutomation handles POST /api/automation/toggle.
func (h *Handler) toggleAutomation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.automation.ToggleAutomation(r.Context(), req.Enabled); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, h.describeAutomation())
}

// refreshAutomation handles POST /api/automation/refresh.
func (h *Handler) refreshAutomation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NoCache bool `json:"noCache"`
	}
	if !decodeOptional(w, r, &req) {
		return
	}
	if _, err := h.automation.RefreshStatus(r.Context(), req.NoCache); err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, h.describeAutomation())
}

// checkAccount handles POST /api/automation/accounts/{id}/check.
func (h *Handler) checkAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.automation.ForceCheckNow(r.Context(), r.PathValue("id"))
	if err != nil && res == nil {
		writeError(w, err, statusFor(err))
		return
	}
	resp := map[string]any{"result": res, "automation": h.describeAutomation()}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// removeMonitored handles POST /api/automation/monitored/remove.
func (h *Handler) removeMonitored(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, errors.New("address is required"), http.StatusBadRequest)
		return
	}
	monitored, err := h.automation.RemoveMonitoredAddress(r.Context(), req.Address)
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"monitoredAddresses": monitored})
}

// recentImports handles GET /api/automation/recent-imports.
func (h *Handler) recentImports(w http.ResponseWriter, r *http.Request) {
	if h.recent == nil {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0})
		return
	}
	n, err := h.recent.Get(r.Context())
	if err != nil {
		writeError(w, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

// health handles GET /health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "dependency", c.Name, "error", err)
			http.Error(w, c.Name+" unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMissingField),
		errors.Is(err, conversion.ErrMissingName):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrUnknownMessage),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrStale),
		errors.Is(err, automation.ErrNoAccount),
		errors.Is(err, conversion.ErrNotApproved),
		errors.Is(err, conversion.ErrAlreadySaved):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrConnection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrFetch),
		errors.Is(err, automation.ErrSync):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, errors.New("invalid JSON body: "+err.Error()), http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptional is decode, but an empty body leaves v unchanged.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, errors.New("invalid JSON body: "+err.Error()), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error, status int) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func nonNilMessages(msgs []models.InboxMessage) []models.InboxMessage {
	if msgs == nil {
		return []models.InboxMessage{}
	}
	return msgs
}
