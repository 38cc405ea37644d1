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

// Package notify delivers user-facing notifications and import events.
// Notifications are pushed to a Redis list that the dashboard drains;
// import events go to a second list consumed by other parts of the ATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message for the user.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Info builds an informational notification.
func Info(format string, args ...any) Notification {
	return Notification{Level: LevelInfo, Message: fmt.Sprintf(format, args...)}
}

// Success builds a success notification.
func Success(format string, args ...any) Notification {
	return Notification{Level: LevelSuccess, Message: fmt.Sprintf(format, args...)}
}

// Failure builds an error notification for a failed user action.
func Failure(action string, err error) Notification {
	return Notification{Level: LevelError, Message: fmt.Sprintf("%s: %v", action, err)}
}

// Notifier accepts notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// EventCandidateImported is published after a candidate is saved.
const EventCandidateImported = "candidate.imported"

// ImportEvent announces a saved candidate.
type ImportEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	CandidateID string    `json:"candidateId"`
	MessageID   string    `json:"messageId,omitempty"`
	Email       string    `json:"email,omitempty"`
	Source      string    `json:"source"`
	At          time.Time `json:"at"`
}

// maxListLen bounds both lists so an idle dashboard cannot grow them forever.
const maxListLen = 500

// Publisher pushes notifications and events to Redis lists.
type Publisher struct {
	rdb               redis.Cmdable
	notificationsList string
	eventsList        string
}

// NewPublisher creates a Redis publisher for the given lists.
func NewPublisher(rdb redis.Cmdable, notificationsList, eventsList string) *Publisher {
	return &Publisher{
		rdb:               rdb,
		notificationsList: notificationsList,
		eventsList:        eventsList,
	}
}

// Notify logs n and pushes it for the dashboard. A Redis failure is logged
// and otherwise ignored.
func (p *Publisher) Notify(ctx context.Context, n Notification) {
	n = stamp(n)
	logNotification(n)

	if err := p.push(ctx, p.notificationsList, n); err != nil {
		slog.Warn("failed to publish notification", "error", err)
	}
}

// PublishImport serialises an import event and pushes it to the events list.
func (p *Publisher) PublishImport(ctx context.Context, ev ImportEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Type == "" {
		ev.Type = EventCandidateImported
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	if err := p.push(ctx, p.eventsList, ev); err != nil {
		return err
	}

	slog.Info("published import event",
		"event_id", ev.ID,
		"candidate_id", ev.CandidateID,
		"message_id", ev.MessageID,
		"list", p.eventsList,
	)
	return nil
}

func (p *Publisher) push(ctx context.Context, list string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", list, err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.LPush(ctx, list, string(payload))
	pipe.LTrim(ctx, list, 0, maxListLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis LPUSH %s: %w", list, err)
	}
	return nil
}

// Drain pops up to max pending notifications, oldest first.
func (p *Publisher) Drain(ctx context.Context, max int) ([]Notification, error) {
	raw, err := p.rdb.RPopCount(ctx, p.notificationsList, max).Result()
	if errors.Is(err, redis.Nil) {
		return []Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis RPOP %s: %w", p.notificationsList, err)
	}

	out := make([]Notification, 0, len(raw))
	for _, r := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			slog.Warn("dropping malformed notification", "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// Log is a Notifier that only writes to the structured log. The CLI uses it.
type Log struct{}

// Notify logs n.
func (Log) Notify(_ context.Context, n Notification) { logNotification(stamp(n)) }

func stamp(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	return n
}

func logNotification(n Notification) {
	switch n.Level {
	case LevelError:
		slog.Error("notification", "id", n.ID, "message", n.Message)
	default:
		slog.Info("notification", "id", n.ID, "level", string(n.Level), "message", n.Message)
	}
}
