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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
)

type memEntry struct {
	data    []byte
	savedAt time.Time
}

// MemoryStore holds snapshots in process. Values are stored JSON-encoded so
// Load never hands out memory shared with the caller that saved it.
type MemoryStore struct {
	entries     map[string]memEntry
	ttl         time.Duration
	mu          sync.RWMutex
	logger      *slog.Logger
	stopCleanup chan struct{}
	closeOnce   sync.Once
	closed      bool
}

func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	store := &MemoryStore{
		entries:     make(map[string]memEntry),
		ttl:         ttl,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	go store.cleanupLoop()
	return store
}

func (m *MemoryStore) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrStoreClosed
	}
	m.entries[key] = memEntry{data: data, savedAt: time.Now()}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, key string, v any) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return core.ErrStoreClosed
	}
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.expired(e, time.Now()) {
		return fmt.Errorf("%w: snapshot %s", core.ErrNotFound, key)
	}
	if err := json.Unmarshal(e.data, v); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot %s: %w", key, err)
	}
	return nil
}

func (m *MemoryStore) expired(e memEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.savedAt) > m.ttl
}

// Cleanup drops expired snapshots.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("snapshot cleanup", "removed", removed)
	}
	return removed
}

func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.stopCleanup)
	})
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
