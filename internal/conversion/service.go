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

// Package conversion persists parsed candidates and converts approved
// applications into candidates.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentdesk/mailimport/internal/metrics"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/notify"
	"github.com/talentdesk/mailimport/internal/resume"
)

var (
	// ErrConversion wraps any failure while converting an application.
	ErrConversion = errors.New("application conversion failed")

	// ErrNotApproved means the application is not in the approved state.
	ErrNotApproved = errors.New("application is not approved")

	// ErrAlreadySaved means this message was already imported.
	ErrAlreadySaved = errors.New("message already imported")

	// ErrMissingName means the candidate has no name.
	ErrMissingName = errors.New("candidate name is required")
)

// Store is the persistence the service writes to.
type Store interface {
	InsertCandidate(ctx context.Context, c models.Candidate) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	MarkApplicationConverted(ctx context.Context, applicationID, candidateID string, at time.Time) error
}

// Claimer records which messages were imported.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher announces saved candidates.
type EventPublisher interface {
	PublishImport(ctx context.Context, ev notify.ImportEvent) error
}

// ServiceConfig holds the service collaborators. Claims and Events are
// optional.
type ServiceConfig struct {
	Store  Store
	Claims Claimer
	Events EventPublisher
}

// Service writes candidate records.
type Service struct {
	store  Store
	claims Claimer
	events EventPublisher
	now    func() time.Time
}

// NewService creates a conversion service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:  cfg.Store,
		claims: cfg.Claims,
		events: cfg.Events,
		now:    time.Now,
	}
}

// SaveParsedCandidate persists a reviewed ParsedCandidate. messageID may be
// empty for manual uploads; otherwise the message (and attachment) is
// claimed first so the same import is never saved twice.
func (s *Service) SaveParsedCandidate(ctx context.Context, messageID string, p models.ParsedCandidate) (*models.Candidate, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, ErrMissingName
	}

	key := claimKey(messageID, p)
	if key != "" && s.claims != nil {
		claimed, err := s.claims.Claim(ctx, key)
		switch {
		case err != nil:
			slog.Warn("import claim unavailable, saving without it", "message_id", messageID, "error", err)
			key = ""
		case !claimed:
			return nil, fmt.Errorf("%w: %s", ErrAlreadySaved, messageID)
		}
	}

	c := s.candidateFromParsed(messageID, p)
	if err := s.store.InsertCandidate(ctx, c); err != nil {
		if key != "" {
			if rerr := s.claims.Release(ctx, key); rerr != nil {
				slog.Warn("failed to release import claim", "message_id", messageID, "error", rerr)
			}
		}
		return nil, fmt.Errorf("save candidate: %w", err)
	}

	metrics.CandidateImported(string(c.Source))
	s.publish(ctx, c)

	slog.Info("candidate saved",
		"candidate_id", c.ID,
		"message_id", messageID,
		"source", c.Source,
		"with_resume", len(c.Documents) > 0,
	)
	return &c, nil
}

// claimKey is per attachment so two resumes in one message are both saved.
func claimKey(messageID string, p models.ParsedCandidate) string {
	if messageID == "" {
		return ""
	}
	if p.OriginalFilename == "" {
		return messageID
	}
	return messageID + ":" + p.OriginalFilename
}

func (s *Service) candidateFromParsed(messageID string, p models.ParsedCandidate) models.Candidate {
	now := s.now().UTC()
	created := parseOr(resume.EnsureValidDate(p.CreatedAt), now)
	updated := parseOr(resume.EnsureValidDate(p.UpdatedAt), now)

	source := p.Source
	if source == "" {
		source = models.SourceEmailImport
	}

	c := models.Candidate{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(p.Name),
		Email:           strings.TrimSpace(p.Email),
		Phone:           p.Phone,
		Skills:          p.Skills,
		Experience:      p.Experience,
		Education:       p.Education,
		ResumeText:      p.ResumeText,
		LinkedIn:        p.LinkedIn,
		Location:        p.Location,
		Languages:       p.Languages,
		JobTitle:        p.JobTitle,
		Source:          source,
		SourceMessageID: messageID,
		CreatedAt:       created,
		UpdatedAt:       updated,
	}

	note := "Imported from email"
	if p.ResumeFileURL != nil {
		c.Documents = []models.Document{{
			ID:         uuid.New().String(),
			Name:       firstNonEmpty(p.OriginalFilename, "resume"),
			URL:        *p.ResumeFileURL,
			Type:       p.FileType,
			Size:       p.FileSize,
			UploadedAt: now,
		}}
		note = "Imported from email attachment " + firstNonEmpty(p.OriginalFilename, "resume")
	} else if p.OriginalFilename != "" {
		note = "Imported from email attachment " + p.OriginalFilename + " (original file not stored)"
	}
	c.History = []models.HistoryNote{{At: now, Note: note}}
	return c
}

// ConvertApprovedApplicationToCandidate copies an approved application into
// a new candidate and marks the application converted.
//
// The two writes are not atomic. If marking the application fails after the
// candidate was inserted, the new candidate id is returned together with an
// ErrConversion; the candidate is left in place.
func (s *Service) ConvertApprovedApplicationToCandidate(ctx context.Context, applicationID string) (string, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return "", fmt.Errorf("%w: load application %s: %w", ErrConversion, applicationID, err)
	}
	if app == nil {
		return "", fmt.Errorf("%w: application %s not found", ErrConversion, applicationID)
	}
	if app.Status != models.ApplicationApproved {
		return "", fmt.Errorf("%w: %w: %s is %s", ErrConversion, ErrNotApproved, applicationID, app.Status)
	}

	now := s.now().UTC()
	c := models.Candidate{
		ID:            uuid.New().String(),
		Name:          app.Name,
		Email:         app.Email,
		Phone:         app.Phone,
		Skills:        app.Skills,
		Experience:    app.Experience,
		Education:     app.Education,
		Location:      app.Location,
		JobTitle:      app.JobTitle,
		Source:        models.SourceApplication,
		ApplicationID: app.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
		History: []models.HistoryNote{{
			At:   now,
			Note: "Converted from approved application " + app.ID,
		}},
	}
	if app.ResumeURL != "" {
		c.Documents = []models.Document{{
			ID:         uuid.New().String(),
			Name:       firstNonEmpty(app.ResumeFilename, "resume"),
			URL:        app.ResumeURL,
			Type:       "resume",
			UploadedAt: now,
		}}
	}

	if err := s.store.InsertCandidate(ctx, c); err != nil {
		return "", fmt.Errorf("%w: insert candidate: %w", ErrConversion, err)
	}

	if err := s.store.MarkApplicationConverted(ctx, app.ID, c.ID, now); err != nil {
		slog.Error("application not marked converted, candidate already created",
			"application_id", app.ID,
			"candidate_id", c.ID,
			"error", err,
		)
		return c.ID, fmt.Errorf("%w: mark application converted: %w", ErrConversion, err)
	}

	metrics.CandidateImported(string(c.Source))
	s.publish(ctx, c)

	slog.Info("application converted", "application_id", app.ID, "candidate_id", c.ID)
	return c.ID, nil
}

func (s *Service) publish(ctx context.Context, c models.Candidate) {
	if s.events == nil {
		return
	}
	err := s.events.PublishImport(ctx, notify.ImportEvent{
		CandidateID: c.ID,
		MessageID:   c.SourceMessageID,
		Email:       c.Email,
		Source:      string(c.Source),
	})
	if err != nil {
		slog.Warn("failed to publish import event", "candidate_id", c.ID, "error", err)
	}
}

func parseOr(s string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
