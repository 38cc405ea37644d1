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

// Package models defines the data structures shared across the email import service.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider identifies the kind of mailbox the gateway connects to.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderIMAP    Provider = "imap-other"
)

// ErrMissingField is returned when a mailbox configuration lacks a field
// its provider requires.
var ErrMissingField = errors.New("missing required field")

// MailboxConfig holds connection settings for one mailbox. Each provider has
// its own concrete type so that, for example, a Gmail account can never carry
// an IMAP server.
type MailboxConfig interface {
	Provider() Provider
	Identity() string
	Credential() string
	Validate() error
}

// GmailAccount connects to a Gmail mailbox with an app password or token.
type GmailAccount struct {
	Username string
	Secret   string
}

func (a GmailAccount) Provider() Provider { return ProviderGmail }
func (a GmailAccount) Identity() string   { return a.Username }
func (a GmailAccount) Credential() string { return a.Secret }
func (a GmailAccount) Validate() error    { return requireLogin(a.Username, a.Secret) }

// OutlookAccount connects to an Outlook / Microsoft 365 mailbox.
type OutlookAccount struct {
	Username string
	Secret   string
}

func (a OutlookAccount) Provider() Provider { return ProviderOutlook }
func (a OutlookAccount) Identity() string   { return a.Username }
func (a OutlookAccount) Credential() string { return a.Secret }
func (a OutlookAccount) Validate() error    { return requireLogin(a.Username, a.Secret) }

// IMAPAccount connects to any other IMAP server.
type IMAPAccount struct {
	Server   string
	Port     int
	Username string
	Secret   string
}

func (a IMAPAccount) Provider() Provider { return ProviderIMAP }
func (a IMAPAccount) Identity() string   { return a.Username }
func (a IMAPAccount) Credential() string { return a.Secret }

func (a IMAPAccount) Validate() error {
	if strings.TrimSpace(a.Server) == "" {
		return fmt.Errorf("%w: server", ErrMissingField)
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("%w: port", ErrMissingField)
	}
	return requireLogin(a.Username, a.Secret)
}

func requireLogin(username, secret string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username", ErrMissingField)
	}
	if secret == "" {
		return fmt.Errorf("%w: password", ErrMissingField)
	}
	return nil
}

// ConnectionParams is the flat wire form of a MailboxConfig, as sent to the
// mail gateway and accepted by the dashboard API.
type ConnectionParams struct {
	Provider Provider `json:"provider" yaml:"provider"`
	Server   string   `json:"server,omitempty" yaml:"server,omitempty"`
	Port     int      `json:"port,omitempty" yaml:"port,omitempty"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"password,omitempty" yaml:"-"`
}

// Params flattens a MailboxConfig for the wire.
func Params(cfg MailboxConfig) ConnectionParams {
	p := ConnectionParams{
		Provider: cfg.Provider(),
		Username: cfg.Identity(),
		Password: cfg.Credential(),
	}
	if imap, ok := cfg.(IMAPAccount); ok {
		p.Server = imap.Server
		p.Port = imap.Port
	}
	return p
}

// Config converts wire parameters back into the provider-specific type.
// The result is not validated.
func (p ConnectionParams) Config() (MailboxConfig, error) {
	switch p.Provider {
	case ProviderGmail:
		return GmailAccount{Username: p.Username, Secret: p.Password}, nil
	case ProviderOutlook:
		return OutlookAccount{Username: p.Username, Secret: p.Password}, nil
	case ProviderIMAP:
		return IMAPAccount{Server: p.Server, Port: p.Port, Username: p.Username, Secret: p.Password}, nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", p.Provider)
	}
}

// MailboxAccount is the mailbox connected in the current session together
// with the automation fields the gateway reports for it.
type MailboxAccount struct {
	Config            MailboxConfig
	AccountID         string
	AutomationEnabled bool
	LastCheckedAt     *time.Time
	TotalImported     int
}
