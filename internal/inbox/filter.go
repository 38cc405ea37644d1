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

// Package inbox implements the local message filter and selection set used
// after an inbox listing is fetched from the gateway.
package inbox

import (
	"strings"
	"time"

	"github.com/talentdesk/mailimport/internal/models"
)

// DateRange selects a received-time window relative to now.
type DateRange string

const (
	RangeToday  DateRange = "today"
	Range7Days  DateRange = "7days"
	Range30Days DateRange = "30days"
	RangeAll    DateRange = "all"
)

// Valid reports whether r is a known range. The empty range means all.
func (r DateRange) Valid() bool {
	switch r {
	case "", RangeToday, Range7Days, Range30Days, RangeAll:
		return true
	}
	return false
}

// Filters are the user-chosen listing filters.
type Filters struct {
	Search              string    `json:"search"`
	DateRange           DateRange `json:"dateRange"`
	OnlyWithAttachments bool      `json:"hasAttachments"`
	OnlyJobRelated      bool      `json:"jobRelated"`
}

// jobKeywords is a subject heuristic. "cv" also matches words such as
// "cvs"; that is accepted.
var jobKeywords = []string{"job", "candidate", "resume", "cv"}

// Match reports whether m passes all four predicates.
func (f Filters) Match(m models.InboxMessage, now time.Time) bool {
	return f.matchSearch(m) &&
		f.matchDate(m, now) &&
		(!f.OnlyWithAttachments || m.HasAttachments) &&
		(!f.OnlyJobRelated || IsJobRelated(m.Subject))
}

func (f Filters) matchSearch(m models.InboxMessage) bool {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Subject), q) ||
		strings.Contains(strings.ToLower(m.From.Name), q) ||
		strings.Contains(strings.ToLower(m.From.Address), q)
}

func (f Filters) matchDate(m models.InboxMessage, now time.Time) bool {
	switch f.DateRange {
	case RangeToday:
		y, mo, d := now.Date()
		midnight := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
		return !m.ReceivedAt.Before(midnight)
	case Range7Days:
		return !m.ReceivedAt.Before(now.Add(-7 * 24 * time.Hour))
	case Range30Days:
		return !m.ReceivedAt.Before(now.Add(-30 * 24 * time.Hour))
	default:
		return true
	}
}

// IsJobRelated applies the subject keyword heuristic.
func IsJobRelated(subject string) bool {
	s := strings.ToLower(subject)
	for _, kw := range jobKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Apply returns the messages that match f, preserving order.
func Apply(messages []models.InboxMessage, f Filters, now time.Time) []models.InboxMessage {
	out := make([]models.InboxMessage, 0, len(messages))
	for _, m := range messages {
		if f.Match(m, now) {
			out = append(out, m)
		}
	}
	return out
}
