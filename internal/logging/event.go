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

package logging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
)

// KindCount is the running tally for one event kind.
type KindCount struct {
	Received  uint64    `json:"received"`
	Delivered uint64    `json:"delivered"`
	Failed    uint64    `json:"failed"`
	Unrouted  uint64    `json:"unrouted"`
	LastSeen  time.Time `json:"last_seen"`
}

// EventLogger records the outcome of every dispatched event. Failed
// deliveries are logged at warn; everything else at debug.
type EventLogger struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[string]*KindCount
}

func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{logger: logger, counts: make(map[string]*KindCount)}
}

func (l *EventLogger) Log(evt core.Event, delivered, failed int) {
	l.mu.Lock()
	kc, ok := l.counts[evt.Kind]
	if !ok {
		kc = &KindCount{}
		l.counts[evt.Kind] = kc
	}
	kc.Received++
	kc.Delivered += uint64(delivered)
	kc.Failed += uint64(failed)
	if delivered == 0 && failed == 0 {
		kc.Unrouted++
	}
	kc.LastSeen = evt.ReceivedAt
	l.mu.Unlock()

	attrs := []any{
		"event_id", evt.ID,
		"kind", evt.Kind,
		"conn_id", evt.ConnectionID,
		"delivered", delivered,
		"failed", failed,
		"payload_size", len(evt.Payload),
		"received_at", evt.ReceivedAt,
	}
	switch {
	case failed > 0:
		l.logger.Warn("event handlers failed", attrs...)
	case delivered == 0:
		l.logger.Debug("event unrouted", attrs...)
	default:
		l.logger.Debug("event", attrs...)
	}
}

// Counts returns a copy of the per-kind tallies.
func (l *EventLogger) Counts() map[string]KindCount {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]KindCount, len(l.counts))
	for kind, kc := range l.counts {
		out[kind] = *kc
	}
	return out
}
