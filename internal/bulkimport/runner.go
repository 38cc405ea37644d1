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

// Package bulkimport imports every resume-bearing message in a date window
// in one run, without per-message review. It reuses the listing, attachment
// pipeline and conversion service the interactive flow uses.
package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/talentdesk/mailimport/internal/conversion"
	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/inbox"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/resume"
	"github.com/talentdesk/mailimport/internal/store"
)

// Request defines the scope of an import run.
type Request struct {
	Config    models.MailboxConfig
	DateRange inbox.DateRange
	Search    string
	Limit     int

	// DryRun lists what would be imported without processing.
	DryRun bool
}

// Result summarises a completed run.
type Result struct {
	Listed   int
	Filtered int // returned by the gateway but outside the window or search
	Eligible int
	Skipped  int // sender already in the candidate base, or message already saved
	Imported int
	Failed   int
	Elapsed  time.Duration
}

// Lister lists inbox messages.
type Lister interface {
	ListMessages(ctx context.Context, cfg models.MailboxConfig, opts gateway.ListOptions) ([]models.InboxMessage, error)
}

// Deduper finds senders that were already imported.
type Deduper interface {
	FindAlreadyImported(ctx context.Context, addresses []string) (map[string]bool, error)
}

// Processor runs the attachment pipeline.
type Processor interface {
	ProcessMessage(ctx context.Context, cfg models.MailboxConfig, msg models.InboxMessage) ([]models.ParsedCandidate, error)
}

// Saver persists candidates.
type Saver interface {
	SaveParsedCandidate(ctx context.Context, messageID string, p models.ParsedCandidate) (*models.Candidate, error)
}

// RunnerConfig holds dependencies for the runner. Dedup is optional.
type RunnerConfig struct {
	Lister    Lister
	Dedup     Deduper
	Processor Processor
	Saver     Saver

	// Rate is the number of attachments processed per second. Zero or less
	// means unthrottled.
	Rate float64
}

// Runner performs bulk imports.
type Runner struct {
	lister    Lister
	dedup     Deduper
	processor Processor
	saver     Saver
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewRunner creates a bulk import runner.
func NewRunner(cfg RunnerConfig) *Runner {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &Runner{
		lister:    cfg.Lister,
		dedup:     cfg.Dedup,
		processor: cfg.Processor,
		saver:     cfg.Saver,
		limiter:   rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
}

// Run lists the window, re-applies the date and search filters locally,
// drops messages without resumes or from known senders, and processes and
// saves the rest in order. Per-message failures
// are counted and logged; only a listing failure or cancellation aborts.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.DateRange == "" {
		req.DateRange = inbox.Range7Days
	}
	if !req.DateRange.Valid() {
		return nil, fmt.Errorf("unknown date range %q", req.DateRange)
	}

	slog.Info("starting bulk import",
		"username", req.Config.Identity(),
		"date_range", req.DateRange,
		"dry_run", req.DryRun,
	)

	msgs, err := r.lister.ListMessages(ctx, req.Config, gateway.ListOptions{
		DateRange:           string(req.DateRange),
		OnlyWithAttachments: true,
		Search:              req.Search,
		Limit:               req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	result := &Result{Listed: len(msgs)}
	msgs = inbox.Apply(msgs, inbox.Filters{
		DateRange: req.DateRange,
		Search:    req.Search,
	}, r.now())
	result.Filtered = result.Listed - len(msgs)
	known := r.knownSenders(ctx, msgs)

	for _, msg := range msgs {
		resumes := resume.ResumeAttachments(msg)
		if len(resumes) == 0 {
			continue
		}
		if known[store.NormalizeEmail(msg.From.Address)] {
			slog.Debug("bulk import: sender already imported", "message_id", msg.ID)
			result.Skipped++
			continue
		}
		result.Eligible++
		if req.DryRun {
			continue
		}

		for range resumes {
			if err := r.limiter.Wait(ctx); err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
		}

		r.importMessage(ctx, req.Config, msg, result)
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
	}

	result.Elapsed = time.Since(start)
	slog.Info("bulk import complete",
		"username", req.Config.Identity(),
		"listed", result.Listed,
		"filtered", result.Filtered,
		"eligible", result.Eligible,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (r *Runner) importMessage(ctx context.Context, cfg models.MailboxConfig, msg models.InboxMessage, result *Result) {
	candidates, err := r.processor.ProcessMessage(ctx, cfg, msg)
	if err != nil {
		slog.Warn("bulk import: attachment processing failed", "message_id", msg.ID, "error", err)
		result.Failed++
	}

	for _, c := range candidates {
		_, err := r.saver.SaveParsedCandidate(ctx, msg.ID, c)
		switch {
		case errors.Is(err, conversion.ErrAlreadySaved):
			result.Skipped++
		case err != nil:
			slog.Warn("bulk import: save failed", "message_id", msg.ID, "candidate", c.Name, "error", err)
			result.Failed++
		default:
			result.Imported++
		}
	}
}

// knownSenders is best effort: a failed lookup imports everything and
// relies on the per-message claims.
func (r *Runner) knownSenders(ctx context.Context, msgs []models.InboxMessage) map[string]bool {
	if r.dedup == nil || len(msgs) == 0 {
		return nil
	}
	addresses := make([]string, 0, len(msgs))
	for _, m := range msgs {
		addresses = append(addresses, m.From.Address)
	}
	found, err := r.dedup.FindAlreadyImported(ctx, addresses)
	if err != nil {
		slog.Warn("bulk import: already-imported check incomplete", "error", err)
	}
	return found
}
