// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	DefaultTTL = 24 * time.Hour
)

// Store keeps the last good copy of each catalog collection so a restart can
// serve stale data before the first reload finishes.
type Store interface {
	Save(ctx context.Context, key string, v any) error
	// Load decodes the value saved under key into v. A missing or expired key
	// returns core.ErrNotFound.
	Load(ctx context.Context, key string, v any) error
	Close() error
}

type Config struct {
	Store     string
	RedisAddr string
	TTL       time.Duration
}

func New(cfg Config, logger *slog.Logger) (Store, error) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}

	switch cfg.Store {
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis_addr is required when store=redis")
		}
		return NewRedisStore(cfg.RedisAddr, cfg.TTL, logger)

	case StoreMemory, "":
		return NewMemoryStore(cfg.TTL, logger), nil

	default:
		return nil, fmt.Errorf("unknown snapshot store type: %s", cfg.Store)
	}
}
