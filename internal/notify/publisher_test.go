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

package notify

import (
	"errors"
	"strings"
	"testing"
)

func TestFailure(t *testing.T) {
	n := Failure("toggle automation", errors.New("HTTP 502"))
	if n.Level != LevelError {
		t.Errorf("level = %q, want error", n.Level)
	}
	if !strings.Contains(n.Message, "toggle automation") || !strings.Contains(n.Message, "HTTP 502") {
		t.Errorf("message = %q", n.Message)
	}
}

func TestStamp(t *testing.T) {
	n := stamp(Success("saved %d candidates", 3))
	if n.ID == "" || n.At.IsZero() {
		t.Errorf("stamp should fill id and time: %+v", n)
	}
	if n.Message != "saved 3 candidates" {
		t.Errorf("message = %q", n.Message)
	}

	again := stamp(n)
	if again.ID != n.ID || !again.At.Equal(n.At) {
		t.Error("stamp should not overwrite existing values")
	}
}
