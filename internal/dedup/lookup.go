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
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talentdesk/mailimport/internal/metrics"
	"github.com/talentdesk/mailimport/internal/models"
	"github.com/talentdesk/mailimport/internal/store"
)

// ErrQuery means at least one membership query failed. Results from the
// queries that succeeded are still returned.
var ErrQuery = errors.New("already-imported lookup failed")

// Matcher answers "which of these addresses exist in collection". It may
// reject more than store.MaxMatchValues addresses per call.
type Matcher interface {
	MatchEmails(ctx context.Context, collection models.Collection, emails []string) ([]string, error)
}

// Lookup finds sender addresses that were already imported.
type Lookup struct {
	matcher     Matcher
	chunkSize   int
	concurrency int
}

// NewLookup creates a lookup over candidates and applications.
func NewLookup(m Matcher) *Lookup {
	return &Lookup{
		matcher:     m,
		chunkSize:   store.MaxMatchValues,
		concurrency: 4,
	}
}

var collections = []models.Collection{
	models.CollectionCandidates,
	models.CollectionApplications,
}

// FindAlreadyImported returns the normalised addresses that exist as a
// candidate or an application. Addresses are trimmed, lower-cased and
// de-duplicated before querying in chunks.
func (l *Lookup) FindAlreadyImported(ctx context.Context, addresses []string) (map[string]bool, error) {
	emails := normalize(addresses)
	found := make(map[string]bool)
	if len(emails) == 0 {
		return found, nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(l.concurrency)

	for _, coll := range collections {
		for _, chunk := range chunks(emails, l.chunkSize) {
			g.Go(func() error {
				matched, err := l.matcher.MatchEmails(ctx, coll, chunk)
				metrics.DedupQuery(string(coll), err)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", coll, err))
					return nil
				}
				for _, e := range matched {
					found[store.NormalizeEmail(e)] = true
				}
				return nil
			})
		}
	}
	g.Wait()

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrQuery, errors.Join(errs...))
		slog.Warn("already-imported lookup incomplete", "failed_queries", len(errs), "error", err)
		return found, err
	}
	return found, nil
}

func normalize(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		e := store.NormalizeEmail(a)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
