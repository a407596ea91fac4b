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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/KBchulan/jmReader/pkg/core"
)

var ErrHandlerPanic = errors.New("handler panicked")

type entry struct {
	id      core.SubscriptionID
	handler core.Handler
}

// Registry routes events to handlers by exact kind. Lists are copied on every
// mutation, so a dispatch in progress keeps iterating the list it started with.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string][]entry
	nextID   atomic.Uint64
	failures atomic.Uint64
	logger   *slog.Logger
}

type Result struct {
	Delivered int
	Failed    int
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string][]entry),
		logger:  logger,
	}
}

// Subscribe appends h to the kind's list. The same handler may be added more
// than once; every entry fires.
func (r *Registry) Subscribe(kind string, h core.Handler) (core.SubscriptionID, error) {
	if kind == "" {
		return 0, core.ErrEmptyKind
	}
	if h == nil {
		return 0, core.ErrNilHandler
	}

	id := core.SubscriptionID(r.nextID.Add(1))

	r.mu.Lock()
	current := r.entries[kind]
	next := make([]entry, len(current), len(current)+1)
	copy(next, current)
	r.entries[kind] = append(next, entry{id: id, handler: h})
	r.mu.Unlock()

	r.logger.Debug("subscribed", "kind", kind, "subscription_id", id)
	return id, nil
}

// Unsubscribe removes the entry with this id under this kind. Unknown pairs
// are ignored.
func (r *Registry) Unsubscribe(kind string, id core.SubscriptionID) bool {
	return r.removeFirst(kind, func(e entry) bool { return e.id == id })
}

// UnsubscribeHandler removes the first entry of kind whose handler is h.
// Handlers whose dynamic type is not comparable never match.
func (r *Registry) UnsubscribeHandler(kind string, h core.Handler) bool {
	return r.removeFirst(kind, func(e entry) bool { return sameHandler(e.handler, h) })
}

func (r *Registry) removeFirst(kind string, match func(entry) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.entries[kind]
	for i, e := range current {
		if !match(e) {
			continue
		}
		next := make([]entry, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(r.entries, kind)
		} else {
			r.entries[kind] = next
		}
		r.logger.Debug("unsubscribed", "kind", kind, "subscription_id", e.id)
		return true
	}
	return false
}

// Dispatch calls every handler registered for evt.Kind in registration order.
// A failing handler is logged and skipped over.
func (r *Registry) Dispatch(ctx context.Context, evt core.Event) Result {
	r.mu.RLock()
	snapshot := r.entries[evt.Kind]
	r.mu.RUnlock()

	var res Result
	if len(snapshot) == 0 {
		r.logger.Debug("no subscribers", "kind", evt.Kind, "event_id", evt.ID)
		return res
	}

	for _, e := range snapshot {
		if err := invoke(ctx, e.handler, evt); err != nil {
			res.Failed++
			r.failures.Add(1)
			r.logger.Error("handler failed",
				"kind", evt.Kind,
				"event_id", evt.ID,
				"subscription_id", e.id,
				"error", err,
			)
			continue
		}
		res.Delivered++
	}
	return res
}

func (r *Registry) Count(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[kind])
}

// Kinds returns the subscriber count per kind.
func (r *Registry) Kinds() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]int, len(r.entries))
	for k, v := range r.entries {
		cp[k] = len(v)
	}
	return cp
}

func (r *Registry) Failures() uint64 { return r.failures.Load() }

func invoke(ctx context.Context, h core.Handler, evt core.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	return h.Handle(ctx, evt)
}

func sameHandler(a, b core.Handler) (same bool) {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	// structs holding non-comparable interface values still panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
