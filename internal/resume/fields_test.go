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

package resume

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestEnsureValidDate(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	tests := []struct {
		in   string
		want string
	}{
		{"2025-12-01T10:30:00Z", "2025-12-01T10:30:00Z"},
		{"2025-12-01T10:30:00.123456+02:00", "2025-12-01T08:30:00Z"},
		{"2025-12-01", "2025-12-01T00:00:00Z"},
		{"", "2026-04-01T08:00:00Z"},
		{"not a date", "2026-04-01T08:00:00Z"},
		{"2025-13-45", "2026-04-01T08:00:00Z"},
		{"12/01/2025", "2026-04-01T08:00:00Z"},
	}

	for _, tt := range tests {
		got := EnsureValidDate(tt.in)
		if got != tt.want {
			t.Errorf("EnsureValidDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if _, err := time.Parse(time.RFC3339, got); err != nil {
			t.Errorf("EnsureValidDate(%q) produced invalid timestamp %q", tt.in, got)
		}
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`["Go", " SQL ", ""]`, []string{"Go", "SQL"}},
		{`"Go, SQL ,, Kubernetes"`, []string{"Go", "SQL", "Kubernetes"}},
		{`[{"name":"English","level":"native"},{"language":"French"}]`, []string{"English", "French"}},
		{`null`, []string{}},
		{`42`, []string{}},
	}
	for _, tt := range tests {
		if got := decodeList(json.RawMessage(tt.in)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("decodeList(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	tests := map[string]string{
		`"5 years backend"`:                 "5 years backend",
		`["Acme 2019-2021","Globex 2021-"]`: "Acme 2019-2021\nGlobex 2021-",
		`{"company": "Acme", "years": 2}`:   `{"company":"Acme","years":2}`,
		`null`:                              "",
	}
	for in, want := range tests {
		if got := decodeText(json.RawMessage(in)); got != want {
			t.Errorf("decodeText(%s) = %q, want %q", in, got, want)
		}
	}
}
