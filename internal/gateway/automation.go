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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/talentdesk/mailimport/internal/models"
)

const automationBase = "/api/email/automation"

// GlobalStatus is the legacy, account-independent automation status.
type GlobalStatus struct {
	Enabled       bool
	LastChecked   *time.Time
	TotalImported int
}

// Status fetches the legacy global automation status.
func (c *Client) Status(ctx context.Context, noCache bool) (*GlobalStatus, error) {
	var resp struct {
		envelope
		Enabled       bool   `json:"enabled"`
		IsRunning     bool   `json:"isRunning"`
		LastChecked   string `json:"lastChecked"`
		TotalImported int    `json:"totalImported"`
	}
	if err := c.do(ctx, http.MethodGet, automationBase+"/status", nil, &resp, callOptions{noCache: noCache}); err != nil {
		return nil, fmt.Errorf("automation status: %w", err)
	}
	return &GlobalStatus{
		Enabled:       resp.Enabled || resp.IsRunning,
		LastChecked:   parseTime(resp.LastChecked),
		TotalImported: resp.TotalImported,
	}, nil
}

// StartAutomation turns on the legacy global poller.
func (c *Client) StartAutomation(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, automationBase+"/start", struct{}{}, nil, callOptions{}); err != nil {
		return fmt.Errorf("start automation: %w", err)
	}
	return nil
}

// StopAutomation turns off the legacy global poller.
func (c *Client) StopAutomation(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, automationBase+"/stop", struct{}{}, nil, callOptions{}); err != nil {
		return fmt.Errorf("stop automation: %w", err)
	}
	return nil
}

// FindAccount looks up the automation account for a mailbox username.
// It returns nil, nil when the gateway has no such account.
func (c *Client) FindAccount(ctx context.Context, username string) (*models.AutomationAccount, error) {
	q := url.Values{}
	q.Set("username", username)

	var resp struct {
		Accounts []wireAccount `json:"accounts"`
	}
	err := c.do(ctx, http.MethodGet, automationBase+"/accounts", nil, &resp, callOptions{query: q, noCache: true})
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find automation account: %w", err)
	}
	for _, a := range resp.Accounts {
		if equalFoldTrim(firstNonEmpty(a.Username, a.Email), username) {
			return a.toModel(), nil
		}
	}
	return nil, nil
}

// CreateAccount registers a mailbox for server-side monitoring.
func (c *Client) CreateAccount(ctx context.Context, cfg models.MailboxConfig, enabled bool) (*models.AutomationAccount, error) {
	payload := struct {
		models.ConnectionParams
		Enabled bool `json:"enabled"`
	}{models.Params(cfg), enabled}

	var resp struct {
		Account *wireAccount `json:"account"`
	}
	if err := c.do(ctx, http.MethodPost, automationBase+"/accounts", payload, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("create automation account: %w", err)
	}
	if resp.Account == nil {
		return nil, fmt.Errorf("create automation account: empty response")
	}
	return resp.Account.toModel(), nil
}

// UpdateAccount flips the enabled flag of an existing account.
func (c *Client) UpdateAccount(ctx context.Context, accountID string, enabled bool) (*models.AutomationAccount, error) {
	payload := struct {
		Enabled bool `json:"enabled"`
	}{enabled}

	var resp struct {
		Account *wireAccount `json:"account"`
	}
	path := automationBase + "/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodPut, path, payload, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("update automation account %s: %w", accountID, err)
	}
	if resp.Account == nil {
		return nil, fmt.Errorf("update automation account %s: empty response", accountID)
	}
	return resp.Account.toModel(), nil
}

// GetAccount fetches the current automation state of one account.
func (c *Client) GetAccount(ctx context.Context, accountID string, noCache bool) (*models.AutomationAccount, error) {
	var resp struct {
		Account *wireAccount `json:"account"`
	}
	path := automationBase + "/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, callOptions{noCache: noCache}); err != nil {
		return nil, fmt.Errorf("get automation account %s: %w", accountID, err)
	}
	if resp.Account == nil {
		return nil, fmt.Errorf("get automation account %s: empty response", accountID)
	}
	return resp.Account.toModel(), nil
}

// CheckAccount asks the gateway to poll one mailbox immediately.
func (c *Client) CheckAccount(ctx context.Context, accountID string) (*models.CheckResult, error) {
	var resp struct {
		envelope
		Imported  int    `json:"imported"`
		CheckedAt string `json:"checkedAt"`
	}
	path := automationBase + "/accounts/" + url.PathEscape(accountID) + "/check"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("check automation account %s: %w", accountID, err)
	}
	if resp.failed() {
		return nil, fmt.Errorf("check automation account %s: %s", accountID, resp.reason())
	}
	return &models.CheckResult{Imported: resp.Imported, CheckedAt: parseTime(resp.CheckedAt)}, nil
}

// MonitoredAddresses lists the sender addresses the automation watches.
func (c *Client) MonitoredAddresses(ctx context.Context, noCache bool) ([]string, error) {
	var resp struct {
		Emails []string `json:"emails"`
	}
	if err := c.do(ctx, http.MethodGet, automationBase+"/monitored", nil, &resp, callOptions{noCache: noCache}); err != nil {
		return nil, fmt.Errorf("list monitored addresses: %w", err)
	}
	if resp.Emails == nil {
		return []string{}, nil
	}
	return resp.Emails, nil
}

// RemoveMonitored stops watching one sender address.
func (c *Client) RemoveMonitored(ctx context.Context, address string) error {
	payload := struct {
		Email string `json:"email"`
	}{address}
	if err := c.do(ctx, http.MethodPost, automationBase+"/remove", payload, nil, callOptions{}); err != nil {
		return fmt.Errorf("remove monitored address: %w", err)
	}
	return nil
}

// RecentImports returns how many candidates the automation imported since t.
func (c *Client) RecentImports(ctx context.Context, since time.Time) (int, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))

	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/candidates/recent-imports", nil, &resp, callOptions{query: q}); err != nil {
		return 0, fmt.Errorf("recent imports: %w", err)
	}
	return resp.Count, nil
}
