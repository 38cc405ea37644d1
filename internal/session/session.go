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

// Package session composes the pieces of the email import flow around the
// one connected mailbox: credentials, listing and filters, selection,
// attachment processing, saving, and automation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talentdesk/mailimport/internal/automation"
	"github.com/talentdesk/mailimport/internal/credentials"
	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/inbox"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/notify"
	"github.com/talentdesk/mailimport/internal/store"
)

var (
	// ErrNotConnected is returned when no mailbox is connected.
	ErrNotConnected = automation.ErrNotConnected

	// ErrStale means the mailbox was disconnected while the call was in flight.
	ErrStale = automation.ErrStale

	// ErrFetch wraps a failed inbox listing.
	ErrFetch = errors.New("message fetch failed")

	// ErrUnknownMessage means the id is not in the current listing.
	ErrUnknownMessage = errors.New("unknown message")
)

// Gateway lists inbox messages.
type Gateway interface {
	ListMessages(ctx context.Context, cfg models.MailboxConfig, opts gateway.ListOptions) ([]models.InboxMessage, error)
}

// Credentials is the single-slot mailbox store.
type Credentials interface {
	Connect(ctx context.Context, cfg models.MailboxConfig) (*models.MailboxAccount, error)
	Load() (*models.MailboxAccount, error)
	Disconnect() error
}

// Deduper finds sender addresses that were already imported.
type Deduper interface {
	FindAlreadyImported(ctx context.Context, addresses []string) (map[string]bool, error)
}

// Processor turns a message into parsed candidates.
type Processor interface {
	ProcessMessage(ctx context.Context, cfg models.MailboxConfig, msg models.InboxMessage) ([]models.ParsedCandidate, error)
}

// Saver persists a reviewed candidate.
type Saver interface {
	SaveParsedCandidate(ctx context.Context, messageID string, p models.ParsedCandidate) (*models.Candidate, error)
}

// Automation is the automation supervisor lifecycle.
type Automation interface {
	Attach(acc models.MailboxAccount)
	Detach()
	RefreshStatus(ctx context.Context, forceNoCache bool) (models.AutomationStatus, error)
}

// Config holds the session collaborators. Dedup, Automation and Notifier
// are optional.
type Config struct {
	Gateway     Gateway
	Credentials Credentials
	Dedup       Deduper
	Processor   Processor
	Saver       Saver
	Automation  Automation
	Notifier    notify.Notifier

	// OnCandidate is called for every candidate the pipeline produces.
	OnCandidate func(messageID string, c models.ParsedCandidate)

	// PageSize is the listing size requested from the gateway.
	PageSize int
}

// MailboxSession is the state of one connected mailbox.
type MailboxSession struct {
	gw          Gateway
	creds       Credentials
	dedup       Deduper
	processor   Processor
	saver       Saver
	automation  Automation
	notifier    notify.Notifier
	onCandidate func(string, models.ParsedCandidate)
	pageSize    int
	now         func() time.Time

	mu         sync.Mutex
	account    *models.MailboxAccount
	epoch      uint64
	sessionCtx context.Context
	cancel     context.CancelFunc
	messages   []models.InboxMessage
	filters    inbox.Filters
	selection  inbox.Selection
	processed  map[string]bool
}

// New creates a disconnected session.
func New(cfg Config) *MailboxSession {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Log{}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &MailboxSession{
		gw:          cfg.Gateway,
		creds:       cfg.Credentials,
		dedup:       cfg.Dedup,
		processor:   cfg.Processor,
		saver:       cfg.Saver,
		automation:  cfg.Automation,
		notifier:    notifier,
		onCandidate: cfg.OnCandidate,
		pageSize:    pageSize,
		now:         time.Now,
		filters:     inbox.Filters{DateRange: inbox.Range7Days},
		processed:   map[string]bool{},
	}
}

// Connect verifies and stores the mailbox, replacing any previous one.
func (s *MailboxSession) Connect(ctx context.Context, cfg models.MailboxConfig) (*models.MailboxAccount, error) {
	acc, err := s.creds.Connect(ctx, cfg)
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not connect mailbox", err))
		return nil, err
	}

	s.attach(*acc)
	s.notifier.Notify(ctx, notify.Success("Connected to %s", cfg.Identity()))
	return acc, nil
}

func (s *MailboxSession) attach(acc models.MailboxAccount) {
	s.mu.Lock()
	s.resetLocked()
	s.sessionCtx, s.cancel = context.WithCancel(context.Background())
	s.account = &acc
	s.mu.Unlock()

	if s.automation != nil {
		s.automation.Attach(acc)
	}
}

// resetLocked ends the current session and clears derived state. Caller
// holds s.mu.
func (s *MailboxSession) resetLocked() {
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.account = nil
	s.messages = nil
	s.selection.Clear()
	s.processed = map[string]bool{}
}

// Disconnect wipes the stored mailbox and all derived state. It is
// idempotent.
func (s *MailboxSession) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	if s.automation != nil {
		s.automation.Detach()
	}

	if err := s.creds.Disconnect(); err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not forget mailbox", err))
		return err
	}
	return nil
}

// Restore reconnects the stored mailbox without re-verifying it, reads the
// server's automation state, and fetches the inbox. It reports false when
// nothing was stored. A revoked credential surfaces as a fetch error.
func (s *MailboxSession) Restore(ctx context.Context) (bool, error) {
	acc, err := s.creds.Load()
	if errors.Is(err, credentials.ErrNoAccount) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.attach(*acc)
	slog.Info("restored mailbox session", "provider", acc.Config.Provider(), "username", acc.Config.Identity())

	if s.automation != nil {
		if _, err := s.automation.RefreshStatus(ctx, true); err != nil {
			slog.Warn("automation status unavailable after restore", "error", err)
		}
	}

	if _, err := s.FetchMessages(ctx, s.Filters()); err != nil {
		return true, err
	}
	return true, nil
}

type snapshot struct {
	epoch   uint64
	session context.Context
	cfg     models.MailboxConfig
}

func (s *MailboxSession) snapshot() (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return snapshot{}, ErrNotConnected
	}
	return snapshot{epoch: s.epoch, session: s.sessionCtx, cfg: s.account.Config}, nil
}

func bind(ctx, session context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// FetchMessages lists the inbox with f, annotates already-imported senders,
// and returns the locally filtered view. The selection is cleared.
func (s *MailboxSession) FetchMessages(ctx context.Context, f inbox.Filters) ([]models.InboxMessage, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if !f.DateRange.Valid() {
		return nil, fmt.Errorf("%w: unknown date range %q", ErrFetch, f.DateRange)
	}

	bctx, cancel := bind(ctx, snap.session)
	defer cancel()

	msgs, err := s.gw.ListMessages(bctx, snap.cfg, gateway.ListOptions{
		DateRange:           string(f.DateRange),
		OnlyWithAttachments: f.OnlyWithAttachments,
		OnlyJobRelated:      f.OnlyJobRelated,
		Search:              f.Search,
		Limit:               s.pageSize,
	})
	if err != nil {
		// The failed listing replaces the old one; the filters are kept
		// for a retry.
		s.mu.Lock()
		current := s.epoch == snap.epoch && s.account != nil
		if current {
			s.messages = nil
			s.selection.Clear()
			s.filters = f
		}
		s.mu.Unlock()
		if !current {
			return nil, ErrStale
		}
		s.notifier.Notify(ctx, notify.Failure("Could not load messages", err))
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	s.annotateImported(bctx, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != snap.epoch {
		return nil, ErrStale
	}
	s.messages = msgs
	s.filters = f
	s.selection.Clear()

	slog.Info("fetched messages", "total", len(msgs), "date_range", f.DateRange)
	return s.viewLocked(), nil
}

// annotateImported flags messages whose sender already exists. Failures
// are logged and otherwise ignored.
func (s *MailboxSession) annotateImported(ctx context.Context, msgs []models.InboxMessage) {
	if s.dedup == nil || len(msgs) == 0 {
		return
	}

	addresses := make([]string, 0, len(msgs))
	for _, m := range msgs {
		addresses = append(addresses, m.From.Address)
	}

	found, err := s.dedup.FindAlreadyImported(ctx, addresses)
	if err != nil {
		slog.Warn("already-imported check incomplete", "error", err)
	}
	for i := range msgs {
		msgs[i].AlreadyImported = found[store.NormalizeEmail(msgs[i].From.Address)]
	}
}

func (s *MailboxSession) isCurrent(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.account != nil
}

// Refilter re-applies filters to the cached listing without a network call.
// The selection is kept.
func (s *MailboxSession) Refilter(f inbox.Filters) []models.InboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
	return s.viewLocked()
}

// Messages returns the filtered view.
func (s *MailboxSession) Messages() []models.InboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Filters returns the active filters.
func (s *MailboxSession) Filters() inbox.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

func (s *MailboxSession) viewLocked() []models.InboxMessage {
	view := inbox.Apply(s.messages, s.filters, s.now())
	for i := range view {
		view[i].Selected = s.selection.Has(view[i].ID)
		view[i].Processed = s.processed[view[i].ID]
	}
	return view
}

// ToggleOne flips the selection of one listed message.
func (s *MailboxSession) ToggleOne(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findLocked(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	s.selection.ToggleOne(id)
	return nil
}

// ToggleAll selects every visible message, or clears the selection if all
// of them are already selected.
func (s *MailboxSession) ToggleAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := inbox.Apply(s.messages, s.filters, s.now())
	ids := make([]string, len(view))
	for i, m := range view {
		ids[i] = m.ID
	}
	s.selection.ToggleAll(ids)
	return s.selection.Selected()
}

// Selected returns the selected message ids.
func (s *MailboxSession) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Selected()
}

func (s *MailboxSession) findLocked(id string) (models.InboxMessage, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.InboxMessage{}, false
}

// ProcessMessage runs the attachment pipeline for one listed message. The
// candidates are returned for review; nothing is saved.
func (s *MailboxSession) ProcessMessage(ctx context.Context, id string) ([]models.ParsedCandidate, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	msg, ok := s.findLocked(id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}

	bctx, cancel := bind(ctx, snap.session)
	defer cancel()

	candidates, err := s.processor.ProcessMessage(bctx, snap.cfg, msg)
	if !s.isCurrent(snap.epoch) {
		return nil, ErrStale
	}
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not process "+describe(msg), err))
	}

	for _, c := range candidates {
		if s.onCandidate != nil {
			s.onCandidate(msg.ID, c)
		}
	}
	return candidates, err
}

// ProcessSelected processes every selected message in order. Failures do
// not stop the remaining messages.
func (s *MailboxSession) ProcessSelected(ctx context.Context) (map[string][]models.ParsedCandidate, error) {
	ids := s.Selected()
	if len(ids) == 0 {
		return map[string][]models.ParsedCandidate{}, nil
	}

	out := make(map[string][]models.ParsedCandidate, len(ids))
	var errs []error
	for _, id := range ids {
		candidates, err := s.ProcessMessage(ctx, id)
		if errors.Is(err, ErrStale) || errors.Is(err, ErrNotConnected) {
			return out, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		if len(candidates) > 0 {
			out[id] = candidates
		}
	}
	return out, errors.Join(errs...)
}

// SaveCandidate persists a reviewed candidate and marks its message
// processed. messageID may be empty for manual entries.
func (s *MailboxSession) SaveCandidate(ctx context.Context, messageID string, p models.ParsedCandidate) (*models.Candidate, error) {
	c, err := s.saver.SaveParsedCandidate(ctx, messageID, p)
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not save "+p.Name, err))
		return nil, err
	}

	if messageID != "" {
		s.mu.Lock()
		s.processed[messageID] = true
		for i := range s.messages {
			if s.messages[i].ID == messageID {
				s.messages[i].AlreadyImported = true
			}
		}
		s.selection.Remove(messageID)
		s.mu.Unlock()
	}

	s.notifier.Notify(ctx, notify.Success("Saved candidate %s", c.Name))
	return c, nil
}

// Account returns the connected mailbox, or nil.
func (s *MailboxSession) Account() *models.MailboxAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	acc := *s.account
	return &acc
}

func describe(m models.InboxMessage) string {
	if m.Subject != "" {
		return fmt.Sprintf("%q", m.Subject)
	}
	return "message " + m.ID
}
