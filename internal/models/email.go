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

package models

import "time"

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment is attachment metadata from a listing. Content is fetched only
// when the attachment is processed.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"size"`
	IsResume    bool   `json:"isResume"`
}

// InboxMessage is a remote email. It lives only as long as the session that
// fetched it.
type InboxMessage struct {
	ID             string       `json:"id"`
	From           EmailAddress `json:"from"`
	Subject        string       `json:"subject"`
	ReceivedAt     time.Time    `json:"receivedAt"`
	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments"`

	Selected        bool `json:"selected"`
	Processed       bool `json:"processed"`
	AlreadyImported bool `json:"alreadyImported"`
}
