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

package inbox

import (
	"testing"
	"time"

	"github.com/talentdesk/mailimport/internal/models"
)

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func msg(id, from, subject string, received time.Time, attachments bool) models.InboxMessage {
	return models.InboxMessage{
		ID:             id,
		From:           models.EmailAddress{Name: from, Address: id + "@example.com"},
		Subject:        subject,
		ReceivedAt:     received,
		HasAttachments: attachments,
	}
}

func TestFilters_DateRange(t *testing.T) {
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		rng      DateRange
		received time.Time
		want     bool
	}{
		{"today at midnight", RangeToday, midnight, true},
		{"today just before midnight", RangeToday, midnight.Add(-time.Second), false},
		{"7 days inside", Range7Days, now.Add(-6 * 24 * time.Hour), true},
		{"7 days boundary", Range7Days, now.Add(-7 * 24 * time.Hour), true},
		{"7 days outside", Range7Days, now.Add(-7*24*time.Hour - time.Minute), false},
		{"30 days inside", Range30Days, now.Add(-29 * 24 * time.Hour), true},
		{"30 days outside", Range30Days, now.Add(-31 * 24 * time.Hour), false},
		{"all", RangeAll, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"empty means all", "", time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Filters{DateRange: tt.rng}
			if got := f.Match(msg("m", "x", "s", tt.received, false), now); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilters_TodayUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	localNow := time.Date(2026, 3, 10, 2, 0, 0, 0, loc) // 2026-03-09T21:00Z
	received := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)

	f := Filters{DateRange: RangeToday}
	if f.Match(msg("m", "x", "s", received, false), localNow) {
		t.Error("message received before local midnight should not be today")
	}
}

func TestFilters_Search(t *testing.T) {
	m := models.InboxMessage{
		Subject: "Application for Backend role",
		From:    models.EmailAddress{Name: "Jane Doe", Address: "jane@corp.example"},
	}
	for _, q := range []string{"backend", "JANE", "corp.example", "  doe  ", ""} {
		if !(Filters{Search: q}).Match(m, now) {
			t.Errorf("search %q should match", q)
		}
	}
	if (Filters{Search: "frontend"}).Match(m, now) {
		t.Error("search frontend should not match")
	}
}

func TestIsJobRelated(t *testing.T) {
	tests := map[string]bool{
		"Job application":          true,
		"New CANDIDATE referral":   true,
		"my resume":                true,
		"CV attached":              true,
		"Lunch on friday":          false,
		"cvs pharmacy receipt":     true,
		"Application for engineer": false,
	}
	for subject, want := range tests {
		if got := IsJobRelated(subject); got != want {
			t.Errorf("IsJobRelated(%q) = %v, want %v", subject, got, want)
		}
	}
}

// TestApply_IsConjunction verifies the combined filter equals the
// intersection of each filter applied on its own.
func TestApply_IsConjunction(t *testing.T) {
	messages := []models.InboxMessage{
		msg("a", "Jane", "Resume for job", now.Add(-time.Hour), true),
		msg("b", "Jane", "Resume for job", now.Add(-10*24*time.Hour), true),
		msg("c", "Bob", "Resume for job", now.Add(-time.Hour), false),
		msg("d", "Jane", "Lunch", now.Add(-time.Hour), true),
		msg("e", "Ann", "CV", now.Add(-2*24*time.Hour), true),
	}

	parts := []Filters{
		{Search: "jane"},
		{DateRange: Range7Days},
		{OnlyWithAttachments: true},
		{OnlyJobRelated: true},
	}
	combined := Filters{Search: "jane", DateRange: Range7Days, OnlyWithAttachments: true, OnlyJobRelated: true}

	for _, m := range messages {
		want := true
		for _, p := range parts {
			want = want && p.Match(m, now)
		}
		if got := combined.Match(m, now); got != want {
			t.Errorf("message %s: combined = %v, intersection = %v", m.ID, got, want)
		}
	}

	got := Apply(messages, combined, now)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Apply returned %v, want [a]", ids(got))
	}
}

func ids(messages []models.InboxMessage) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

// TestFilters_AttachmentFilterOverridesKeywordMatch verifies a job-related
// subject does not rescue a message without attachments.
func TestFilters_AttachmentFilterOverridesKeywordMatch(t *testing.T) {
	m := msg("m", "x", "resume for job", now, false)
	f := Filters{OnlyWithAttachments: true, OnlyJobRelated: true}
	if f.Match(m, now) {
		t.Error("message without attachments must be excluded")
	}
}
