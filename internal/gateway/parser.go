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
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/talentdesk/mailimport/internal/models"
)

// wireAddress accepts either {"name","address"} or an RFC 5322 string such
// as "Jane Doe <jane@example.com>". Gateways differ by provider.
type wireAddress struct {
	Name    string
	Address string
}

func (a *wireAddress) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, perr := mail.ParseAddress(s); perr == nil {
			a.Name, a.Address = parsed.Name, parsed.Address
		} else {
			a.Address = strings.TrimSpace(s)
		}
		return nil
	}

	var obj struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Email   string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	a.Address = firstNonEmpty(obj.Address, obj.Email)
	return nil
}

// wireAttachment is attachment metadata as listed by the gateway.
type wireAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	IsResume    bool   `json:"isResume"`
}

// wireMessage represents the relevant fields from a gateway inbox listing.
type wireMessage struct {
	ID             string           `json:"id"`
	From           wireAddress      `json:"from"`
	Subject        string           `json:"subject"`
	Date           string           `json:"date"`
	HasAttachments bool             `json:"hasAttachments"`
	Attachments    []wireAttachment `json:"attachments"`
}

// toInboxMessage converts a gateway listing entry into an InboxMessage.
func (m wireMessage) toInboxMessage() models.InboxMessage {
	attachments := make([]models.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, models.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   a.Size,
			IsResume:    a.IsResume,
		})
	}

	received := time.Time{}
	if t := parseTime(m.Date); t != nil {
		received = *t
	}

	return models.InboxMessage{
		ID: m.ID,
		From: models.EmailAddress{
			Address: m.From.Address,
			Name:    m.From.Name,
		},
		Subject:        m.Subject,
		ReceivedAt:     received,
		HasAttachments: m.HasAttachments || len(attachments) > 0,
		Attachments:    attachments,
	}
}

// wireAccount is the gateway's automation account record.
type wireAccount struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Provider      string `json:"provider"`
	Enabled       bool   `json:"enabled"`
	LastCheckedAt string `json:"lastCheckedAt"`
	TotalImported int    `json:"totalImported"`
}

func (a wireAccount) toModel() *models.AutomationAccount {
	return &models.AutomationAccount{
		ID:            a.ID,
		Username:      firstNonEmpty(a.Username, a.Email),
		Provider:      models.Provider(a.Provider),
		Enabled:       a.Enabled,
		LastCheckedAt: parseTime(a.LastCheckedAt),
		TotalImported: a.TotalImported,
	}
}

// timeLayouts are the timestamp formats seen from gateway providers.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime returns nil for empty or unparseable timestamps.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
