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

import "sort"

// Selection is a set of message ids. The zero value is empty and ready to use.
// It is not safe for concurrent use.
type Selection struct {
	ids map[string]struct{}
}

// ToggleOne adds id if absent and removes it if present.
func (s *Selection) ToggleOne(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// ToggleAll clears the selection if it is exactly the visible set;
// otherwise the selection becomes exactly visible. Ids selected outside
// the view are dropped either way.
func (s *Selection) ToggleAll(visible []string) {
	want := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		want[id] = struct{}{}
	}
	if len(want) > 0 && s.equals(want) {
		s.Clear()
		return
	}
	s.ids = want
}

func (s *Selection) equals(ids map[string]struct{}) bool {
	if len(s.ids) != len(ids) {
		return false
	}
	for id := range ids {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Clear empties the selection.
func (s *Selection) Clear() { s.ids = nil }

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int { return len(s.ids) }

// Selected returns the selected ids in sorted order.
func (s *Selection) Selected() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Remove deselects id.
func (s *Selection) Remove(id string) { delete(s.ids, id) }
