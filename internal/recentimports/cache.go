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

// Package recentimports caches the "candidates imported recently" counter
// shown next to the automation toggle.
package recentimports

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source reports how many candidates were imported since a point in time.
type Source interface {
	RecentImports(ctx context.Context, since time.Time) (int, error)
}

// Config holds cache timings. Zero values use the defaults.
type Config struct {
	TTL      time.Duration // how long a fetched value is fresh (5m)
	Debounce time.Duration // minimum gap between requests (1s)
	Interval time.Duration // background refresh period (2m)
	Lookback time.Duration // counting window (24h)
}

// Cache holds the last fetched counter.
type Cache struct {
	src      Source
	ttl      time.Duration
	debounce time.Duration
	interval time.Duration
	lookback time.Duration
	now      func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	value       int
	has         bool
	fetchedAt   time.Time
	lastRequest time.Time
}

// New creates a cache over src.
func New(src Source, cfg Config) *Cache {
	return &Cache{
		src:      src,
		ttl:      orDefault(cfg.TTL, 5*time.Minute),
		debounce: orDefault(cfg.Debounce, time.Second),
		interval: orDefault(cfg.Interval, 2*time.Minute),
		lookback: orDefault(cfg.Lookback, 24*time.Hour),
		now:      time.Now,
	}
}

// Get returns the cached counter while it is fresh or while the previous
// request was less than the debounce window ago. Otherwise it fetches;
// concurrent fetches share one request.
func (c *Cache) Get(ctx context.Context) (int, error) {
	c.mu.Lock()
	now := c.now()
	if c.has && now.Sub(c.fetchedAt) < c.ttl {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	if c.has && now.Sub(c.lastRequest) < c.debounce {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.lastRequest = now
	c.mu.Unlock()

	return c.fetch(ctx)
}

// Refresh fetches regardless of freshness.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.lastRequest = c.now()
	c.mu.Unlock()

	return c.fetch(ctx)
}

// Value returns the last fetched counter, if any.
func (c *Cache) Value() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.has
}

// Reset forgets the cached value, e.g. when the mailbox is disconnected.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.has = 0, false
	c.fetchedAt, c.lastRequest = time.Time{}, time.Time{}
}

func (c *Cache) fetch(ctx context.Context) (int, error) {
	v, err, _ := c.group.Do("recent-imports", func() (interface{}, error) {
		since := c.now().Add(-c.lookback)
		n, err := c.src.RecentImports(ctx, since)
		if err != nil {
			return 0, err
		}

		c.mu.Lock()
		c.value, c.has, c.fetchedAt = n, true, c.now()
		c.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Run refreshes the cache on a fixed interval. It blocks until ctx is
// cancelled.
func (c *Cache) Run(ctx context.Context) {
	slog.Info("recent imports refresher starting", "interval", c.interval, "lookback", c.lookback)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("recent imports refresher stopped")
			return
		case <-ticker.C:
			if _, err := c.Get(ctx); err != nil {
				slog.Warn("recent imports refresh failed", "error", err)
			}
		}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
