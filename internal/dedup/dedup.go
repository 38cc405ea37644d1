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

// Package dedup keeps email imports from creating duplicate records. Filter
// claims a message id in Redis before it is saved; Lookup checks sender
// addresses against existing candidates and applications.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a claimed message id is remembered.
	DefaultTTL = 7 * 24 * time.Hour

	// keyPrefix namespaces claim keys in Redis.
	keyPrefix = "mailimport:claimed:"
)

// Filter tracks which message ids have already been imported.
type Filter struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewFilter creates a claim filter backed by Redis. A zero ttl uses DefaultTTL.
func NewFilter(rdb redis.Cmdable, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim returns true if the message id had not been claimed yet, and
// atomically claims it (SETNX).
func (f *Filter) Claim(ctx context.Context, messageID string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+messageID, time.Now().UTC().Format(time.RFC3339), f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Release drops a claim so the message can be imported again, e.g. after
// the save that followed the claim failed.
func (f *Filter) Release(ctx context.Context, messageID string) error {
	if err := f.rdb.Del(ctx, keyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}
	return nil
}
