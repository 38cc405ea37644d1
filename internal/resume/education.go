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
)

// EducationEntry is one education item as reported by a resume parser.
// It is either StructuredEducation or RawEducation.
type EducationEntry interface {
	String() string
	isEducation()
}

// StructuredEducation is an entry whose fields were recognised.
type StructuredEducation struct {
	Degree string
	School string
	Year   string
	Field  string
}

func (StructuredEducation) isEducation() {}

// String renders "<degree> in <field> - <school> (<year>)", dropping any
// missing part together with its connector.
func (e StructuredEducation) String() string {
	var b strings.Builder
	b.WriteString(e.Degree)
	if e.Field != "" {
		if b.Len() > 0 {
			b.WriteString(" in ")
		}
		b.WriteString(e.Field)
	}
	if e.School != "" {
		if b.Len() > 0 {
			b.WriteString(" - ")
		}
		b.WriteString(e.School)
	}
	if e.Year != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(" + e.Year + ")")
	}
	return b.String()
}

// RawEducation is free text, or the compact JSON of an object whose keys
// were not recognised.
type RawEducation string

func (RawEducation) isEducation() {}

func (e RawEducation) String() string { return string(e) }

// Keys per slot, highest priority first. Keys are compared after
// lower-casing and removing "_" and "-", so graduation_year matches
// graduationYear.
var (
	degreeKeys = []string{"degree", "qualification", "title"}
	schoolKeys = []string{"institution", "school", "university", "college"}
	yearKeys   = []string{"year", "graduationyear", "endyear", "completionyear"}
	fieldKeys  = []string{"field", "major", "fieldofstudy", "specialization"}
)

// DecodeEducation accepts a string, an object, or a list of either.
// It never fails: anything it cannot interpret is kept as RawEducation.
func DecodeEducation(raw json.RawMessage) []EducationEntry {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			return []EducationEntry{RawEducation(s)}
		}
		return nil
	}
	return decodeEducationValue(v)
}

func decodeEducationValue(v any) []EducationEntry {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []EducationEntry{RawEducation(s)}
		}
		return nil
	case []any:
		var out []EducationEntry
		for _, item := range t {
			out = append(out, decodeEducationValue(item)...)
		}
		return out
	case map[string]any:
		if e := decodeEducationObject(t); e != nil {
			return []EducationEntry{e}
		}
		return nil
	default:
		if s := scalarString(t); s != "" {
			return []EducationEntry{RawEducation(s)}
		}
		return nil
	}
}

func decodeEducationObject(obj map[string]any) EducationEntry {
	if len(obj) == 0 {
		return nil
	}

	normalized := make(map[string]any, len(obj))
	for k, v := range obj {
		normalized[normalizeKey(k)] = v
	}

	// A slot key holding a nested value cannot be rendered; the whole
	// object is then kept as raw text.
	nested := false
	pick := func(keys []string) string {
		for _, k := range keys {
			v, ok := normalized[k]
			if !ok {
				continue
			}
			if s := scalarString(v); s != "" {
				return s
			}
			if !isEmptyValue(v) {
				nested = true
			}
		}
		return ""
	}

	e := StructuredEducation{
		Degree: pick(degreeKeys),
		School: pick(schoolKeys),
		Year:   pick(yearKeys),
		Field:  pick(fieldKeys),
	}
	if nested || e == (StructuredEducation{}) {
		if isEmptyValue(obj) {
			return nil
		}
		dump, err := json.Marshal(obj)
		if err != nil {
			return nil
		}
		return RawEducation(dump)
	}
	return e
}

// isEmptyValue reports whether v carries no text at any depth.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		for _, item := range t {
			if !isEmptyValue(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range t {
			if !isEmptyValue(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// NormalizeEducation renders any parser education value as display text,
// one entry per line.
func NormalizeEducation(raw json.RawMessage) string {
	entries := DecodeEducation(raw)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if s := e.String(); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// scalarString returns the trimmed text of a string or number, and "" for
// anything else.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
