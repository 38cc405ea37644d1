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
	"reflect"
	"testing"
)

func TestSelection_ToggleOneTwiceIsIdentity(t *testing.T) {
	var s Selection
	s.ToggleOne("a")
	before := s.Selected()

	s.ToggleOne("b")
	s.ToggleOne("b")

	if !reflect.DeepEqual(s.Selected(), before) {
		t.Errorf("selection = %v, want %v", s.Selected(), before)
	}
}

func TestSelection_ToggleAllSymmetry(t *testing.T) {
	visible := []string{"a", "b", "c"}

	t.Run("from empty", func(t *testing.T) {
		var s Selection
		s.ToggleAll(visible)
		if s.Len() != 3 {
			t.Fatalf("after first toggle-all: %v", s.Selected())
		}
		s.ToggleAll(visible)
		if s.Len() != 0 {
			t.Errorf("after second toggle-all: %v", s.Selected())
		}
	})

	t.Run("from full", func(t *testing.T) {
		var s Selection
		for _, id := range visible {
			s.ToggleOne(id)
		}
		s.ToggleAll(visible)
		if s.Len() != 0 {
			t.Fatalf("after first toggle-all: %v", s.Selected())
		}
		s.ToggleAll(visible)
		if !reflect.DeepEqual(s.Selected(), visible) {
			t.Errorf("after second toggle-all: %v", s.Selected())
		}
	})

	t.Run("from partial", func(t *testing.T) {
		var s Selection
		s.ToggleOne("b")
		s.ToggleAll(visible)
		if !reflect.DeepEqual(s.Selected(), visible) {
			t.Errorf("partial selection should become full, got %v", s.Selected())
		}
	})
}

func TestSelection_ToggleAllNarrowedView(t *testing.T) {
	var s Selection
	s.ToggleAll([]string{"a", "b", "c"})

	// The view shrank after a refilter; the selection is a strict superset.
	s.ToggleAll([]string{"a", "b"})
	if want := []string{"a", "b"}; !reflect.DeepEqual(s.Selected(), want) {
		t.Fatalf("toggle-all over a narrower view = %v, want %v", s.Selected(), want)
	}
	s.ToggleAll([]string{"a", "b"})
	if s.Len() != 0 {
		t.Errorf("second toggle-all should clear, got %v", s.Selected())
	}
}

func TestSelection_ToggleAllEmptyView(t *testing.T) {
	var s Selection
	s.ToggleOne("a")
	s.ToggleAll(nil)
	if s.Len() != 0 {
		t.Errorf("toggle-all over an empty view should leave nothing selected, got %v", s.Selected())
	}
}

func TestSelection_Clear(t *testing.T) {
	var s Selection
	s.ToggleAll([]string{"a", "b"})
	s.Clear()
	if s.Has("a") || s.Len() != 0 {
		t.Error("clear should empty the selection")
	}
}
