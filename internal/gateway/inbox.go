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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/talentdesk/mailimport/internal/models"
)

// ListOptions are the filter hints sent with an inbox listing. The gateway
// may apply them server-side; callers re-apply them locally.
type ListOptions struct {
	DateRange           string `json:"dateRange,omitempty"`
	OnlyWithAttachments bool   `json:"hasAttachments"`
	OnlyJobRelated      bool   `json:"jobRelated"`
	Search              string `json:"search,omitempty"`
	Limit               int    `json:"limit,omitempty"`
}

// AttachmentContent is a downloaded attachment.
type AttachmentContent struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// ParsedResume is the resume parser's output. Fields whose shape varies
// between parser providers are kept raw for the caller to normalise.
type ParsedResume struct {
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Skills     json.RawMessage `json:"skills"`
	Experience json.RawMessage `json:"experience"`
	Education  json.RawMessage `json:"education"`
	ResumeText string          `json:"resumeText"`
	LinkedIn   string          `json:"linkedin"`
	Location   string          `json:"location"`
	Languages  json.RawMessage `json:"languages"`
	JobTitle   string          `json:"jobTitle"`
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// failed reports an explicit success=false in a 2xx response.
func (e envelope) failed() bool { return e.Success != nil && !*e.Success }

func (e envelope) reason() string { return firstNonEmpty(e.Error, e.Message, "gateway reported failure") }

// messageRef identifies one attachment of one message on a mailbox.
type messageRef struct {
	models.ConnectionParams
	MessageID    string `json:"messageId"`
	AttachmentID string `json:"attachmentId"`
}

// Connect validates the mailbox credentials with the gateway.
func (c *Client) Connect(ctx context.Context, cfg models.MailboxConfig) error {
	var resp envelope
	err := c.do(ctx, http.MethodPost, "/api/email/inbox/connect", models.Params(cfg), &resp, callOptions{})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return fmt.Errorf("connect mailbox: %w", err)
	}
	if resp.failed() {
		return fmt.Errorf("%w: %s", ErrConnection, resp.reason())
	}
	return nil
}

// ListMessages fetches one page of inbox messages.
func (c *Client) ListMessages(ctx context.Context, cfg models.MailboxConfig, opts ListOptions) ([]models.InboxMessage, error) {
	payload := struct {
		models.ConnectionParams
		Filters ListOptions `json:"filters"`
		Limit   int         `json:"limit,omitempty"`
	}{
		ConnectionParams: models.Params(cfg),
		Filters:          opts,
		Limit:            opts.Limit,
	}

	var resp struct {
		envelope
		Emails []wireMessage `json:"emails"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/email/inbox/list", payload, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if resp.failed() {
		return nil, fmt.Errorf("list messages: %s", resp.reason())
	}

	messages := make([]models.InboxMessage, 0, len(resp.Emails))
	for _, m := range resp.Emails {
		messages = append(messages, m.toInboxMessage())
	}
	return messages, nil
}

// DownloadAttachment fetches and decodes the raw bytes of one attachment.
func (c *Client) DownloadAttachment(ctx context.Context, cfg models.MailboxConfig, messageID, attachmentID string) (*AttachmentContent, error) {
	ref := messageRef{ConnectionParams: models.Params(cfg), MessageID: messageID, AttachmentID: attachmentID}

	var resp struct {
		envelope
		Data struct {
			Filename    string `json:"filename"`
			ContentType string `json:"contentType"`
			Size        int64  `json:"size"`
			Content     string `json:"content"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/email/download-attachment", ref, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	if resp.failed() {
		return nil, fmt.Errorf("download attachment: %s", resp.reason())
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data.Content)
	if err != nil {
		return nil, fmt.Errorf("decode attachment content: %w", err)
	}

	size := resp.Data.Size
	if size == 0 {
		size = int64(len(data))
	}

	return &AttachmentContent{
		Filename:    resp.Data.Filename,
		ContentType: resp.Data.ContentType,
		Size:        size,
		Data:        data,
	}, nil
}

// ParseAttachment asks the gateway's resume parser to extract candidate
// fields from one attachment. It is a separate round trip from the download.
func (c *Client) ParseAttachment(ctx context.Context, cfg models.MailboxConfig, messageID, attachmentID string) (*ParsedResume, error) {
	ref := messageRef{ConnectionParams: models.Params(cfg), MessageID: messageID, AttachmentID: attachmentID}

	var resp struct {
		envelope
		Data *ParsedResume `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/email/parse-attachment", ref, &resp, callOptions{}); err != nil {
		return nil, fmt.Errorf("parse attachment: %w", err)
	}
	if resp.failed() {
		return nil, fmt.Errorf("parse attachment: %s", resp.reason())
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("parse attachment: empty parser response")
	}
	return resp.Data, nil
}
