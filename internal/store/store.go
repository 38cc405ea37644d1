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

// Package store provides Postgres persistence for candidate and application
// records.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentdesk/mailimport/internal/models"
)

// MaxMatchValues caps the number of addresses per membership query.
const MaxMatchValues = 10

var (
	// ErrTooManyValues is returned by MatchEmails for oversized batches.
	ErrTooManyValues = fmt.Errorf("at most %d values per query", MaxMatchValues)

	// ErrNotFound is returned by updates that matched no row.
	ErrNotFound = errors.New("record not found")
)

// Store provides CRUD operations for candidates and applications.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given Postgres pool. It ensures
// both tables exist on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure candidate schema: %w", err)
	}
	slog.Info("candidate store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS candidates (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			email             TEXT DEFAULT '',
			phone             TEXT DEFAULT '',
			skills            TEXT[] DEFAULT '{}',
			experience        TEXT DEFAULT '',
			education         TEXT DEFAULT '',
			resume_text       TEXT DEFAULT '',
			linkedin          TEXT DEFAULT '',
			location          TEXT DEFAULT '',
			languages         TEXT[] DEFAULT '{}',
			job_title         TEXT DEFAULT '',
			source            TEXT NOT NULL,
			source_message_id TEXT DEFAULT '',
			application_id    TEXT DEFAULT '',
			documents         JSONB DEFAULT '[]',
			history           JSONB DEFAULT '[]',
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			updated_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_candidates_email ON candidates(lower(email));

		CREATE TABLE IF NOT EXISTS applications (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			email           TEXT DEFAULT '',
			phone           TEXT DEFAULT '',
			skills          TEXT[] DEFAULT '{}',
			experience      TEXT DEFAULT '',
			education       TEXT DEFAULT '',
			location        TEXT DEFAULT '',
			job_title       TEXT DEFAULT '',
			resume_url      TEXT DEFAULT '',
			resume_filename TEXT DEFAULT '',
			status          TEXT DEFAULT 'pending',
			candidate_id    TEXT DEFAULT '',
			converted_at    TIMESTAMPTZ,
			created_at      TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_applications_email ON applications(lower(email));
		CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
	`)
	return err
}

// InsertCandidate writes a new candidate record.
func (s *Store) InsertCandidate(ctx context.Context, c models.Candidate) error {
	if c.Documents == nil {
		c.Documents = []models.Document{}
	}
	if c.History == nil {
		c.History = []models.HistoryNote{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO candidates
			(id, name, email, phone, skills, experience, education, resume_text,
			 linkedin, location, languages, job_title, source, source_message_id,
			 application_id, documents, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, c.ID, c.Name, c.Email, c.Phone, nonNil(c.Skills), c.Experience, c.Education, c.ResumeText,
		c.LinkedIn, c.Location, nonNil(c.Languages), c.JobTitle, string(c.Source), c.SourceMessageID,
		c.ApplicationID, c.Documents, c.History, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert candidate %s: %w", c.ID, err)
	}
	return nil
}

// GetCandidate retrieves a candidate by id, or nil if there is none.
func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	var source string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, skills, experience, education, resume_text,
		       linkedin, location, languages, job_title, source, source_message_id,
		       application_id, documents, history, created_at, updated_at
		FROM candidates
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Skills, &c.Experience, &c.Education, &c.ResumeText,
		&c.LinkedIn, &c.Location, &c.Languages, &c.JobTitle, &source, &c.SourceMessageID,
		&c.ApplicationID, &c.Documents, &c.History, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Source = models.Source(source)
	return &c, nil
}

// InsertApplication writes an application record. Applications normally
// come from the careers site; this exists for imports and fixtures.
func (s *Store) InsertApplication(ctx context.Context, a models.Application) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications
			(id, name, email, phone, skills, experience, education, location,
			 job_title, resume_url, resume_filename, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.Name, a.Email, a.Phone, nonNil(a.Skills), a.Experience, a.Education, a.Location,
		a.JobTitle, a.ResumeURL, a.ResumeFilename, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert application %s: %w", a.ID, err)
	}
	return nil
}

// GetApplication retrieves an application by id, or nil if there is none.
func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, skills, experience, education, location,
		       job_title, resume_url, resume_filename, status, candidate_id,
		       converted_at, created_at
		FROM applications
		WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.Skills, &a.Experience, &a.Education, &a.Location,
		&a.JobTitle, &a.ResumeURL, &a.ResumeFilename, &a.Status, &a.CandidateID,
		&a.ConvertedAt, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkApplicationConverted records the candidate an application became.
func (s *Store) MarkApplicationConverted(ctx context.Context, applicationID, candidateID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE applications
		SET status = $1, candidate_id = $2, converted_at = $3
		WHERE id = $4
	`, models.ApplicationConverted, candidateID, at, applicationID)
	if err != nil {
		return fmt.Errorf("mark application %s converted: %w", applicationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark application %s converted: %w", applicationID, ErrNotFound)
	}
	return nil
}

// MatchEmails returns which of the given lower-cased addresses exist in
// the collection. At most MaxMatchValues addresses may be passed.
func (s *Store) MatchEmails(ctx context.Context, collection models.Collection, emails []string) ([]string, error) {
	if len(emails) > MaxMatchValues {
		return nil, fmt.Errorf("match %s: %d values: %w", collection, len(emails), ErrTooManyValues)
	}
	if len(emails) == 0 {
		return nil, nil
	}

	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT lower(email) FROM `+table+` WHERE lower(email) = ANY($1)`,
		emails)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", collection, err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		matched = append(matched, e)
	}
	return matched, rows.Err()
}

// tableFor maps a collection onto its table. Table names are never taken
// from input.
func tableFor(c models.Collection) (string, error) {
	switch c {
	case models.CollectionCandidates:
		return "candidates", nil
	case models.CollectionApplications:
		return "applications", nil
	default:
		return "", fmt.Errorf("unknown collection %q", c)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
