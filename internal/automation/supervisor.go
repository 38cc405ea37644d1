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

// Package automation supervises server-side mailbox polling for the
// connected mailbox: it toggles the gateway's per-account automation flag,
// polls status while automation is on, and reconciles local state with
// what the server reports.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talentdesk/mailimport/internal/gateway"
	"github.com/talentdesk/mailimport/internal/metrics"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/notify"
)

var (
	// ErrSync wraps any failed status or toggle call.
	ErrSync = errors.New("automation sync failed")

	// ErrNotConnected is returned when no mailbox is attached.
	ErrNotConnected = errors.New("no mailbox connected")

	// ErrNoAccount is returned when an operation needs a server-side
	// automation account and none is known yet.
	ErrNoAccount = errors.New("no automation account for this mailbox")

	// ErrStale means the mailbox was detached or replaced while the call
	// was in flight; its result was discarded.
	ErrStale = errors.New("response belongs to an ended session")
)

// State is the supervisor state.
type State int

const (
	Disconnected State = iota
	Idle
	Polling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	default:
		return "disconnected"
	}
}

// Gateway is the subset of the mail gateway the supervisor calls.
type Gateway interface {
	FindAccount(ctx context.Context, username string) (*models.AutomationAccount, error)
	CreateAccount(ctx context.Context, cfg models.MailboxConfig, enabled bool) (*models.AutomationAccount, error)
	UpdateAccount(ctx context.Context, accountID string, enabled bool) (*models.AutomationAccount, error)
	GetAccount(ctx context.Context, accountID string, noCache bool) (*models.AutomationAccount, error)
	CheckAccount(ctx context.Context, accountID string) (*models.CheckResult, error)
	Status(ctx context.Context, noCache bool) (*gateway.GlobalStatus, error)
	MonitoredAddresses(ctx context.Context, noCache bool) ([]string, error)
	RemoveMonitored(ctx context.Context, address string) error
	StartAutomation(ctx context.Context) error
	StopAutomation(ctx context.Context) error
}

// RecentImports is the recent-imports counter cache.
type RecentImports interface {
	Get(ctx context.Context) (int, error)
	Refresh(ctx context.Context) (int, error)
	Reset()
}

// Config holds the supervisor collaborators.
type Config struct {
	Gateway   Gateway
	Recent    RecentImports // optional
	Scheduler Scheduler     // defaults to TickerScheduler
	Notifier  notify.Notifier
	Interval  time.Duration // poll interval while enabled (30s)

	// OnAccountID is called when the server-side account id becomes known.
	OnAccountID func(id string)
}

// Supervisor owns the automation state of one mailbox session.
type Supervisor struct {
	gw          Gateway
	recent      RecentImports
	scheduler   Scheduler
	notifier    notify.Notifier
	interval    time.Duration
	onAccountID func(string)

	mu            sync.Mutex
	state         State
	account       *models.MailboxAccount
	status        models.AutomationStatus
	stopTimer     func()
	epoch         uint64
	sessionCtx    context.Context
	cancelSession context.CancelFunc

	polling atomic.Bool
}

// NewSupervisor creates a supervisor in the Disconnected state.
func NewSupervisor(cfg Config) *Supervisor {
	sched := cfg.Scheduler
	if sched == nil {
		sched = TickerScheduler{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Log{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Supervisor{
		gw:          cfg.Gateway,
		recent:      cfg.Recent,
		scheduler:   sched,
		notifier:    notifier,
		interval:    interval,
		onAccountID: cfg.OnAccountID,
	}
}

// transition is the only place the poll timer is started or stopped.
// The old timer is always stopped first, so at most one exists.
// Caller holds s.mu.
func (s *Supervisor) transition(next State) {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	if s.state != next {
		slog.Info("automation state changed", "from", s.state.String(), "to", next.String())
	}
	s.state = next
	if next == Polling {
		epoch := s.epoch
		s.stopTimer = s.scheduler.Every(s.interval, func() { s.poll(epoch) })
	}
}

// Attach moves to Idle for a newly connected mailbox. Any previous session
// is ended first.
func (s *Supervisor) Attach(acc models.MailboxAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endSession()
	s.sessionCtx, s.cancelSession = context.WithCancel(context.Background())
	s.account = &acc
	s.status = models.AutomationStatus{
		Enabled:            acc.AutomationEnabled,
		LastChecked:        acc.LastCheckedAt,
		TotalImported:      acc.TotalImported,
		MonitoredAddresses: []string{},
	}
	s.transition(Idle)
}

// Detach stops polling, forgets cached state and cancels in-flight calls.
func (s *Supervisor) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endSession()
	s.account = nil
	s.status = models.AutomationStatus{MonitoredAddresses: []string{}}
	s.transition(Disconnected)
	if s.recent != nil {
		s.recent.Reset()
	}
}

// endSession invalidates responses from the current session. Caller holds s.mu.
func (s *Supervisor) endSession() {
	s.epoch++
	if s.cancelSession != nil {
		s.cancelSession()
		s.cancelSession = nil
	}
}

// snapshot captures what an operation needs before releasing the lock.
type snapshot struct {
	epoch   uint64
	session context.Context
	account models.MailboxAccount
}

func (s *Supervisor) snapshot() (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disconnected || s.account == nil {
		return snapshot{}, ErrNotConnected
	}
	return snapshot{epoch: s.epoch, session: s.sessionCtx, account: *s.account}, nil
}

// bind derives a context that is also cancelled when the session ends.
func bind(ctx, session context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// current reports whether epoch is still the live session. Caller holds s.mu.
func (s *Supervisor) current(epoch uint64) bool {
	return s.epoch == epoch && s.state != Disconnected
}

// ToggleAutomation turns server-side polling on or off for the attached
// mailbox. Local state changes only after the server confirms.
func (s *Supervisor) ToggleAutomation(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	if s.state == Disconnected || s.account == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.transition(Idle)
	snap := snapshot{epoch: s.epoch, session: s.sessionCtx, account: *s.account}
	s.mu.Unlock()

	ctx, cancel := bind(ctx, snap.session)
	defer cancel()

	acc, err := s.upsertAccount(ctx, snap.account, enabled)
	metrics.AutomationSync("toggle", err)
	if err != nil {
		if !s.fallBack(snap.epoch) {
			return ErrStale
		}
		s.notifier.Notify(ctx, notify.Failure("Could not update automation", err))
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	s.mu.Lock()
	if !s.current(snap.epoch) {
		s.mu.Unlock()
		return ErrStale
	}
	s.account.AccountID = acc.ID
	s.account.AutomationEnabled = acc.Enabled
	s.applyAccount(acc)
	if acc.Enabled {
		s.transition(Polling)
	} else {
		s.transition(Idle)
	}
	s.mu.Unlock()

	if acc.ID != snap.account.AccountID && s.onAccountID != nil {
		s.onAccountID(acc.ID)
	}

	if acc.Enabled {
		s.notifier.Notify(ctx, notify.Success("Automation enabled for %s", snap.account.Config.Identity()))
	} else {
		s.notifier.Notify(ctx, notify.Info("Automation disabled for %s", snap.account.Config.Identity()))
	}
	return nil
}

// upsertAccount finds the server account for the mailbox and creates or
// updates it.
func (s *Supervisor) upsertAccount(ctx context.Context, acc models.MailboxAccount, enabled bool) (*models.AutomationAccount, error) {
	id := acc.AccountID
	if id == "" {
		found, err := s.gw.FindAccount(ctx, acc.Config.Identity())
		if err != nil {
			return nil, err
		}
		if found != nil {
			id = found.ID
		}
	}

	if id == "" {
		return s.gw.CreateAccount(ctx, acc.Config, enabled)
	}
	return s.gw.UpdateAccount(ctx, id, enabled)
}

// applyAccount copies server account fields into the status. Caller holds s.mu.
func (s *Supervisor) applyAccount(acc *models.AutomationAccount) {
	s.status.Enabled = acc.Enabled
	if acc.LastCheckedAt != nil {
		s.status.LastChecked = acc.LastCheckedAt
	}
	s.status.TotalImported = acc.TotalImported
}

// fallBack treats automation as disabled after a failure. It returns false
// if the failure belongs to an ended session.
func (s *Supervisor) fallBack(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(epoch) {
		return false
	}
	s.status.Enabled = false
	if s.account != nil {
		s.account.AutomationEnabled = false
	}
	s.transition(Idle)
	return true
}

// poll is the timer callback. Overlapping polls are skipped.
func (s *Supervisor) poll(epoch uint64) {
	if !s.polling.CompareAndSwap(false, true) {
		slog.Debug("automation poll skipped, previous poll still running")
		return
	}
	defer s.polling.Store(false)

	s.mu.Lock()
	if !s.current(epoch) {
		s.mu.Unlock()
		return
	}
	session := s.sessionCtx
	s.mu.Unlock()

	if _, err := s.RefreshStatus(session, false); err != nil && !errors.Is(err, ErrStale) {
		slog.Warn("automation poll failed", "error", err)
	}
}

// RefreshStatus re-reads automation status, the monitored addresses and the
// recent-imports counter. forceNoCache bypasses HTTP and local caches.
// The server's enabled flag is reconciled into the state machine.
func (s *Supervisor) RefreshStatus(ctx context.Context, forceNoCache bool) (models.AutomationStatus, error) {
	snap, err := s.snapshot()
	if err != nil {
		return models.AutomationStatus{}, err
	}

	ctx, cancel := bind(ctx, snap.session)
	defer cancel()

	var (
		enabled     bool
		lastChecked *time.Time
		total       int
		monitored   []string
		recent      int
		haveRecent  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if snap.account.AccountID == "" {
			st, err := s.gw.Status(gctx, forceNoCache)
			if err != nil {
				return err
			}
			enabled, lastChecked, total = st.Enabled, st.LastChecked, st.TotalImported
			return nil
		}
		acc, err := s.gw.GetAccount(gctx, snap.account.AccountID, forceNoCache)
		if err != nil {
			return err
		}
		enabled, lastChecked, total = acc.Enabled, acc.LastCheckedAt, acc.TotalImported
		return nil
	})
	g.Go(func() error {
		var err error
		monitored, err = s.gw.MonitoredAddresses(gctx, forceNoCache)
		return err
	})
	if s.recent != nil {
		g.Go(func() error {
			var err error
			if forceNoCache {
				recent, err = s.recent.Refresh(gctx)
			} else {
				recent, err = s.recent.Get(gctx)
			}
			if err != nil {
				slog.Warn("recent imports unavailable", "error", err)
				return nil
			}
			haveRecent = true
			return nil
		})
	}
	err = g.Wait()
	metrics.AutomationSync("status", err)

	if err != nil {
		if !s.fallBack(snap.epoch) {
			return models.AutomationStatus{}, ErrStale
		}
		s.notifier.Notify(ctx, notify.Failure("Could not load automation status", err))
		return s.Status(), fmt.Errorf("%w: %w", ErrSync, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(snap.epoch) {
		return models.AutomationStatus{}, ErrStale
	}

	s.status.Enabled = enabled
	if lastChecked != nil {
		s.status.LastChecked = lastChecked
	}
	s.status.TotalImported = total
	s.status.MonitoredAddresses = monitored
	if haveRecent {
		s.status.RecentImports = recent
	}
	s.account.AutomationEnabled = enabled

	switch {
	case enabled && s.state != Polling:
		s.transition(Polling)
	case !enabled && s.state == Polling:
		s.transition(Idle)
	}
	return s.statusLocked(), nil
}

// ForceCheckNow asks the gateway to poll the mailbox immediately, then
// refreshes status and the recent-imports counter without caches. An empty
// accountID means the attached mailbox's account.
func (s *Supervisor) ForceCheckNow(ctx context.Context, accountID string) (*models.CheckResult, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		accountID = snap.account.AccountID
	}
	if accountID == "" {
		return nil, ErrNoAccount
	}

	bctx, cancel := bind(ctx, snap.session)
	defer cancel()

	res, err := s.gw.CheckAccount(bctx, accountID)
	metrics.AutomationSync("check", err)
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Mailbox check failed", err))
		return nil, fmt.Errorf("%w: %w", ErrSync, err)
	}

	s.notifier.Notify(ctx, notify.Success("Mailbox checked: %d new candidate(s) imported", res.Imported))

	if _, err := s.RefreshStatus(ctx, true); err != nil {
		return res, err
	}
	return res, nil
}

// RemoveMonitoredAddress stops watching address and re-reads the list.
func (s *Supervisor) RemoveMonitoredAddress(ctx context.Context, address string) ([]string, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	bctx, cancel := bind(ctx, snap.session)
	defer cancel()

	if err := s.gw.RemoveMonitored(bctx, address); err != nil {
		metrics.AutomationSync("remove", err)
		s.notifier.Notify(ctx, notify.Failure("Could not remove "+address, err))
		return nil, fmt.Errorf("%w: %w", ErrSync, err)
	}

	monitored, err := s.gw.MonitoredAddresses(bctx, true)
	metrics.AutomationSync("remove", err)
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not reload monitored addresses", err))
		return nil, fmt.Errorf("%w: %w", ErrSync, err)
	}

	s.mu.Lock()
	if !s.current(snap.epoch) {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.status.MonitoredAddresses = monitored
	s.mu.Unlock()

	s.notifier.Notify(ctx, notify.Info("Stopped monitoring %s", address))
	return append([]string(nil), monitored...), nil
}

// SetGlobalAutomation flips the gateway's legacy global poller. It does not
// change the per-account state.
func (s *Supervisor) SetGlobalAutomation(ctx context.Context, enabled bool) error {
	var err error
	if enabled {
		err = s.gw.StartAutomation(ctx)
	} else {
		err = s.gw.StopAutomation(ctx)
	}
	metrics.AutomationSync("global", err)
	if err != nil {
		s.notifier.Notify(ctx, notify.Failure("Could not change global automation", err))
		return fmt.Errorf("%w: %w", ErrSync, err)
	}
	return nil
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccountID returns the server-side account id, if known.
func (s *Supervisor) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return ""
	}
	return s.account.AccountID
}

// Status returns a copy of the cached status.
func (s *Supervisor) Status() models.AutomationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Supervisor) statusLocked() models.AutomationStatus {
	st := s.status
	st.MonitoredAddresses = append([]string{}, s.status.MonitoredAddresses...)
	return st
}
