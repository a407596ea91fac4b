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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCarriesWholeFrame(t *testing.T) {
	evt, err := Decode([]byte(`{"action":"item_added","payload":{"id":7}}`), "conn-1")
	require.NoError(t, err)

	assert.Equal(t, "item_added", evt.Kind)
	assert.Equal(t, "conn-1", evt.ConnectionID)
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.ReceivedAt.IsZero())

	var body struct {
		Action  string `json:"action"`
		Payload struct {
			ID int `json:"id"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(evt.Payload, &body))
	assert.Equal(t, 7, body.Payload.ID)
	assert.Equal(t, "item_added", body.Action)
}

func TestDecodeMissingAction(t *testing.T) {
	frames := []string{
		`{"payload":{"id":8}}`,
		`{"action":""}`,
		`{"action":42}`,
		`{"action":null}`,
	}
	for _, f := range frames {
		_, err := Decode([]byte(f), "c")
		assert.True(t, errors.Is(err, ErrMissingAction), "frame %s: got %v", f, err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	frames := []string{
		``,
		`not json`,
		`["action","comic_added"]`,
		`{"action":"comic_added"`,
		`"comic_added"`,
	}
	for _, f := range frames {
		_, err := Decode([]byte(f), "c")
		assert.True(t, errors.Is(err, ErrMalformedFrame), "frame %q: got %v", f, err)
	}
}

func TestEncodeEnvelope(t *testing.T) {
	evt, err := Decode([]byte(`{"action":"comic_deleted","comic_id":"12"}`), "conn-9")
	require.NoError(t, err)

	data, err := Encode(evt)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, evt.ID, env.ID)
	assert.Equal(t, "comic_deleted", env.Kind)
	assert.Equal(t, "conn-9", env.ConnectionID)
	assert.JSONEq(t, `{"action":"comic_deleted","comic_id":"12"}`, string(env.Payload))
}
