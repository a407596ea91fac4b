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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "jmreader:catalog:"

// RedisStore keeps snapshots as JSON strings with a per-key TTL, so redis
// handles expiry on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(addr string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("snapshot store connected", "store", StoreRedis, "addr", addr)
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

func (r *RedisStore) key(name string) string {
	return keyPrefix + name
}

func (r *RedisStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return r.wrap("save", key, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: snapshot %s", core.ErrNotFound, key)
	}
	if err != nil {
		return r.wrap("load", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) wrap(op, key string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return core.ErrStoreClosed
	}
	return fmt.Errorf("failed to %s snapshot %s: %w", op, key, err)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
