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
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func TestEventLoggerWritesAttributes(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)

	NewEventLogger(logger).Log(core.Event{
		ID:           "evt-1",
		Kind:         core.KindComicAdded,
		ConnectionID: "conn-1",
		Payload:      json.RawMessage(`{"action":"comic_added"}`),
		ReceivedAt:   time.Now(),
	}, 2, 0)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "event", line["msg"])
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "evt-1", line["event_id"])
	assert.Equal(t, core.KindComicAdded, line["kind"])
	assert.Equal(t, "conn-1", line["conn_id"])
	assert.EqualValues(t, 2, line["delivered"])
	assert.EqualValues(t, 0, line["failed"])
	assert.EqualValues(t, 24, line["payload_size"])
}

func TestEventLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	l := NewEventLogger(logger)

	l.Log(core.Event{ID: "ok", Kind: "x"}, 1, 0)
	l.Log(core.Event{ID: "none", Kind: "y"}, 0, 0)
	assert.Zero(t, buf.Len(), "successful and unrouted events stay at debug")

	l.Log(core.Event{ID: "bad", Kind: "x"}, 1, 2)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "event handlers failed", line["msg"])
	assert.Equal(t, "bad", line["event_id"])
}

func TestEventLoggerCounts(t *testing.T) {
	logger, _ := newBufferLogger(slog.LevelError)
	l := NewEventLogger(logger)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	l.Log(core.Event{Kind: core.KindComicAdded, ReceivedAt: at.Add(-time.Minute)}, 2, 0)
	l.Log(core.Event{Kind: core.KindComicAdded, ReceivedAt: at}, 1, 1)
	l.Log(core.Event{Kind: "unknown"}, 0, 0)

	counts := l.Counts()
	assert.Equal(t, KindCount{Received: 2, Delivered: 3, Failed: 1, LastSeen: at}, counts[core.KindComicAdded])
	assert.Equal(t, uint64(1), counts["unknown"].Unrouted)

	counts[core.KindComicAdded] = KindCount{}
	assert.Equal(t, uint64(2), l.Counts()[core.KindComicAdded].Received, "Counts returns a copy")
}
