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

// Package resume turns email attachments into ParsedCandidate records:
// download, store the original file, parse, and normalise. It never writes
// candidate records itself.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/metrics"
	"github.com/talentdesk/mailimport/internal/models"
)

var (
	// ErrDownload means the attachment bytes could not be fetched.
	ErrDownload = errors.New("attachment download failed")

	// ErrParse means the resume parser failed; no candidate is produced.
	ErrParse = errors.New("resume parse failed")

	// ErrUpload means the original file could not be stored. The candidate
	// is still produced, without a file URL.
	ErrUpload = errors.New("resume upload failed")
)

// Gateway is the subset of the mail gateway the pipeline needs.
type Gateway interface {
	DownloadAttachment(ctx context.Context, cfg models.MailboxConfig, messageID, attachmentID string) (*gateway.AttachmentContent, error)
	ParseAttachment(ctx context.Context, cfg models.MailboxConfig, messageID, attachmentID string) (*gateway.ParsedResume, error)
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Processor runs the attachment pipeline.
type Processor struct {
	gateway  Gateway
	uploader Uploader
}

// NewProcessor creates a Processor. uploader may be nil, in which case no
// original files are stored.
func NewProcessor(gw Gateway, uploader Uploader) *Processor {
	return &Processor{gateway: gw, uploader: uploader}
}

// ProcessMessage produces candidates for every resume attachment of msg.
// A message without resume attachments yields one minimal candidate built
// from the sender, with no network calls. Attachments are processed in
// order; a failed attachment is reported in the joined error and the rest
// still run.
func (p *Processor) ProcessMessage(ctx context.Context, cfg models.MailboxConfig, msg models.InboxMessage) ([]models.ParsedCandidate, error) {
	resumes := ResumeAttachments(msg)
	if len(resumes) == 0 {
		return []models.ParsedCandidate{FromSender(msg)}, nil
	}

	var (
		candidates []models.ParsedCandidate
		errs       []error
	)
	for _, att := range resumes {
		c, err := p.ProcessAttachment(ctx, cfg, msg, att)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates, errors.Join(errs...)
}

// ResumeAttachments returns the attachments classified as resumes.
func ResumeAttachments(msg models.InboxMessage) []models.Attachment {
	var out []models.Attachment
	for _, a := range msg.Attachments {
		if a.IsResume {
			out = append(out, a)
		}
	}
	return out
}

// ProcessAttachment runs download, upload, parse and normalise for one
// attachment. There are no retries.
func (p *Processor) ProcessAttachment(ctx context.Context, cfg models.MailboxConfig, msg models.InboxMessage, att models.Attachment) (*models.ParsedCandidate, error) {
	log := slog.With("message_id", msg.ID, "attachment_id", att.ID, "filename", att.Filename)

	content, err := p.gateway.DownloadAttachment(ctx, cfg, msg.ID, att.ID)
	metrics.PipelineStep("download", err)
	if err != nil {
		log.Error("attachment download failed", "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, att.Filename, err)
	}

	fileURL, err := p.upload(ctx, msg.ID, att, content)
	if err != nil {
		log.Warn("storing resume file failed, continuing without it", "error", err)
	}

	parsed, err := p.gateway.ParseAttachment(ctx, cfg, msg.ID, att.ID)
	metrics.PipelineStep("parse", err)
	if err != nil {
		log.Error("resume parse failed", "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, att.Filename, err)
	}

	c := Normalize(parsed, msg)
	c.Source = models.SourceEmailAttachment
	c.ResumeFileURL = fileURL
	c.OriginalFilename = firstNonEmpty(content.Filename, att.Filename)
	c.FileType = firstNonEmpty(content.ContentType, att.ContentType)
	c.FileSize = content.Size

	log.Info("resume parsed", "candidate", c.Name, "stored", fileURL != nil)
	return &c, nil
}

// upload stores the original file. Failure is soft: the caller gets a nil
// URL and an ErrUpload it is expected to log, not return.
func (p *Processor) upload(ctx context.Context, messageID string, att models.Attachment, content *gateway.AttachmentContent) (*string, error) {
	if p.uploader == nil {
		return nil, nil
	}

	filename := firstNonEmpty(content.Filename, att.Filename, att.ID)
	key := StorageKey(messageID, filename, time.Now())

	u, err := p.uploader.Upload(ctx, key, firstNonEmpty(content.ContentType, att.ContentType), content.Data)
	metrics.PipelineStep("upload", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return &u, nil
}

// StorageKey namespaces a stored attachment by message and upload time:
// email-attachments/<messageID>/<unixMillis>_<filename>.
func StorageKey(messageID, filename string, at time.Time) string {
	clean := strings.NewReplacer("/", "_", "\\", "_").Replace(filename)
	return path.Join("email-attachments", sanitizeSegment(messageID), strconv.FormatInt(at.UnixMilli(), 10)+"_"+clean)
}

func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}

// Normalize merges parser output with the sender identity. Timestamps are
// set to now.
func Normalize(parsed *gateway.ParsedResume, msg models.InboxMessage) models.ParsedCandidate {
	ts := EnsureValidDate("")
	return models.ParsedCandidate{
		Name:       firstNonEmpty(strings.TrimSpace(parsed.Name), senderName(msg.From)),
		Email:      firstNonEmpty(strings.TrimSpace(parsed.Email), msg.From.Address),
		Phone:      strings.TrimSpace(parsed.Phone),
		Skills:     decodeList(parsed.Skills),
		Experience: decodeText(parsed.Experience),
		Education:  NormalizeEducation(parsed.Education),
		ResumeText: parsed.ResumeText,
		LinkedIn:   strings.TrimSpace(parsed.LinkedIn),
		Location:   strings.TrimSpace(parsed.Location),
		Languages:  decodeList(parsed.Languages),
		JobTitle:   strings.TrimSpace(parsed.JobTitle),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// FromSender builds the minimal candidate for a message with no resume.
func FromSender(msg models.InboxMessage) models.ParsedCandidate {
	ts := EnsureValidDate("")
	return models.ParsedCandidate{
		Name:      senderName(msg.From),
		Email:     msg.From.Address,
		Skills:    []string{},
		Languages: []string{},
		Source:    models.SourceEmailImport,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// senderName falls back to the local part of the address.
func senderName(from models.EmailAddress) string {
	if name := strings.TrimSpace(from.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(from.Address, "@")
	return local
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
