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

package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/google/uuid"
)

// ActionField names the discriminator every pushed frame carries.
const ActionField = "action"

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingAction  = errors.New("frame has no action")
)

// Decode turns one text frame into an event. The whole frame object becomes
// the payload, so handlers see every field the server sent, action included.
func Decode(frame []byte, connID string) (core.Event, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return core.Event{}, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return core.Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	raw, ok := fields[ActionField]
	if !ok {
		return core.Event{}, ErrMissingAction
	}
	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil || kind == "" {
		return core.Event{}, ErrMissingAction
	}

	return core.Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		Payload:      json.RawMessage(trimmed),
		ConnectionID: connID,
		ReceivedAt:   time.Now().UTC(),
	}, nil
}

// Envelope is the JSON shape the relay publishes to brokers.
type Envelope struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	ConnectionID string          `json:"connection_id"`
	ReceivedAt   time.Time       `json:"received_at"`
	Payload      json.RawMessage `json:"payload"`
}

func Encode(evt core.Event) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:           evt.ID,
		Kind:         evt.Kind,
		ConnectionID: evt.ConnectionID,
		ReceivedAt:   evt.ReceivedAt,
		Payload:      evt.Payload,
	})
}

// KindPlaceholder in a sink topic or routing key is replaced by the event kind.
const KindPlaceholder = "{kind}"

func ExpandTopic(template string, evt core.Event) string {
	return strings.ReplaceAll(template, KindPlaceholder, evt.Kind)
}
