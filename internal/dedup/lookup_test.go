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

package dedup

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/store"
)

type mockMatcher struct {
	mu       sync.Mutex
	existing map[models.Collection]map[string]bool
	sizes    map[models.Collection][]int
	failOn   models.Collection
}

func newMockMatcher() *mockMatcher {
	return &mockMatcher{
		existing: map[models.Collection]map[string]bool{
			models.CollectionCandidates:   {},
			models.CollectionApplications: {},
		},
		sizes: map[models.Collection][]int{},
	}
}

func (m *mockMatcher) MatchEmails(ctx context.Context, coll models.Collection, emails []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(emails) > store.MaxMatchValues {
		return nil, store.ErrTooManyValues
	}
	m.sizes[coll] = append(m.sizes[coll], len(emails))
	if coll == m.failOn {
		return nil, errors.New("index unavailable")
	}
	var out []string
	for _, e := range emails {
		if m.existing[coll][e] {
			out = append(out, e)
		}
	}
	return out, nil
}

// TestFindAlreadyImported_ChunksOf10 verifies 23 addresses become 10+10+3
// per collection and every match is reported.
func TestFindAlreadyImported_ChunksOf10(t *testing.T) {
	m := newMockMatcher()
	var addresses []string
	for i := 0; i < 23; i++ {
		addresses = append(addresses, fmt.Sprintf("user%02d@example.com", i))
	}
	m.existing[models.CollectionCandidates]["user03@example.com"] = true
	m.existing[models.CollectionCandidates]["user15@example.com"] = true
	m.existing[models.CollectionApplications]["user22@example.com"] = true

	found, err := NewLookup(m).FindAlreadyImported(context.Background(), addresses)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, coll := range collections {
		sizes := append([]int(nil), m.sizes[coll]...)
		sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
		if !reflect.DeepEqual(sizes, []int{10, 10, 3}) {
			t.Errorf("%s chunk sizes = %v, want [10 10 3]", coll, sizes)
		}
	}

	want := map[string]bool{
		"user03@example.com": true,
		"user15@example.com": true,
		"user22@example.com": true,
	}
	if !reflect.DeepEqual(found, want) {
		t.Errorf("found = %v, want %v", found, want)
	}
}

func TestFindAlreadyImported_Normalizes(t *testing.T) {
	m := newMockMatcher()
	m.existing[models.CollectionApplications]["jane@example.com"] = true

	found, err := NewLookup(m).FindAlreadyImported(context.Background(),
		[]string{" Jane@Example.com", "jane@example.com", "", "   ", "JANE@EXAMPLE.COM"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found["jane@example.com"] || len(found) != 1 {
		t.Errorf("found = %v", found)
	}
	if !reflect.DeepEqual(m.sizes[models.CollectionCandidates], []int{1}) {
		t.Errorf("duplicates should be collapsed before querying, sizes = %v", m.sizes)
	}
}

func TestFindAlreadyImported_EmptyInput(t *testing.T) {
	m := newMockMatcher()
	found, err := NewLookup(m).FindAlreadyImported(context.Background(), nil)
	if err != nil || len(found) != 0 {
		t.Errorf("expected empty result, got %v, %v", found, err)
	}
	if len(m.sizes) != 0 {
		t.Error("no queries should run for empty input")
	}
}

// TestFindAlreadyImported_PartialFailure verifies results from healthy
// queries survive a failing collection.
func TestFindAlreadyImported_PartialFailure(t *testing.T) {
	m := newMockMatcher()
	m.failOn = models.CollectionApplications
	m.existing[models.CollectionCandidates]["a@example.com"] = true

	found, err := NewLookup(m).FindAlreadyImported(context.Background(), []string{"a@example.com", "b@example.com"})
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if !found["a@example.com"] {
		t.Errorf("candidate match should survive, found = %v", found)
	}
}

func TestChunks(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}
	got := chunks(values, 2)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %v, want %v", got, want)
	}
	if chunks(nil, 10) != nil {
		t.Error("no chunks for empty input")
	}
}
