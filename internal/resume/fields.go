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
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// now is replaced in tests.
var now = time.Now

// dateOnly is the ISO-8601 calendar date layout.
const dateOnly = "2006-01-02"

// EnsureValidDate returns raw normalised to a UTC RFC 3339 timestamp, or the
// current time when raw is empty or not an ISO-8601 date.
func EnsureValidDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return now().UTC().Format(time.RFC3339)
}

// decodeList accepts a JSON list or a comma-separated string. Empty items
// are dropped; order is kept.
func decodeList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitList(s)
	}

	var items []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case map[string]any:
			// Some parsers send [{"name":"Go","level":"expert"}].
			for _, k := range []string{"name", "skill", "language", "value"} {
				if v := scalarString(t[k]); v != "" {
					out = append(out, v)
					break
				}
			}
		default:
			if v := scalarString(t); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeText flattens a free-text field that some parsers send as a list
// of strings or objects.
func decodeText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, 0, len(items))
		for _, item := range items {
			if line := decodeText(item); line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
