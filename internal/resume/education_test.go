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
	"testing"
)

func TestNormalizeEducation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "full object",
			in:   `{"degree":"BSc","field":"Computer Science","institution":"MIT","year":2020}`,
			want: "BSc in Computer Science - MIT (2020)",
		},
		{
			name: "missing field drops its connector",
			in:   `{"degree":"BSc","school":"MIT","year":"2020"}`,
			want: "BSc - MIT (2020)",
		},
		{
			name: "school only",
			in:   `{"university":"Oxford"}`,
			want: "Oxford",
		},
		{
			name: "year only",
			in:   `{"graduationYear":"2019"}`,
			want: "(2019)",
		},
		{
			name: "field without degree",
			in:   `{"major":"Physics","college":"Reed"}`,
			want: "Physics - Reed",
		},
		{
			name: "priority order within a slot",
			in:   `{"title":"Diploma","degree":"MSc","university":"ETH","institution":"EPFL"}`,
			want: "MSc - EPFL",
		},
		{
			name: "empty higher-priority key falls through",
			in:   `{"degree":"","qualification":"MBA","end_year":"2018"}`,
			want: "MBA (2018)",
		},
		{
			name: "snake and kebab keys",
			in:   `{"field_of_study":"Law","completion-year":2001}`,
			want: "Law (2001)",
		},
		{
			name: "plain string",
			in:   `"  BA History, Yale  "`,
			want: "BA History, Yale",
		},
		{
			name: "list of mixed entries",
			in:   `[{"degree":"PhD","specialization":"AI","school":"CMU"},"Bootcamp 2015",{"degree":"BSc"}]`,
			want: "PhD in AI - CMU\nBootcamp 2015\nBSc",
		},
		{
			name: "unrecognised object dumped",
			in:   `{"course":"Go","provider":"Udemy"}`,
			want: `{"course":"Go","provider":"Udemy"}`,
		},
		{
			name: "nested slot value keeps the object",
			in:   `{"degree":{"name":"BSc"},"institution":"MIT"}`,
			want: `{"degree":{"name":"BSc"},"institution":"MIT"}`,
		},
		{
			name: "empty slot with other data keeps the object",
			in:   `{"degree":"","notes":"Dean's list"}`,
			want: `{"degree":"","notes":"Dean's list"}`,
		},
		{
			name: "object of blank values skipped",
			in:   `[{"degree":"","school":null}, "HND"]`,
			want: "HND",
		},
		{
			name: "empty object skipped",
			in:   `[{}, "HND"]`,
			want: "HND",
		},
		{
			name: "null",
			in:   `null`,
			want: "",
		},
		{
			name: "empty",
			in:   ``,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEducation(json.RawMessage(tt.in)); got != tt.want {
				t.Errorf("NormalizeEducation(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeEducation_Variants(t *testing.T) {
	entries := DecodeEducation(json.RawMessage(`[{"degree":"BSc"},"free text",{"foo":1}]`))
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if _, ok := entries[0].(StructuredEducation); !ok {
		t.Errorf("entry 0 is %T, want StructuredEducation", entries[0])
	}
	if _, ok := entries[1].(RawEducation); !ok {
		t.Errorf("entry 1 is %T, want RawEducation", entries[1])
	}
	if raw, ok := entries[2].(RawEducation); !ok || string(raw) != `{"foo":1}` {
		t.Errorf("entry 2 = %#v, want raw dump", entries[2])
	}
}
