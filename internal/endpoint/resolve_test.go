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

package endpoint

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tests := []struct {
		name    string
		baseURL string
		origin  string
		want    string
	}{
		{"insecure origin host", "", "http://localhost:5173", "ws://localhost:5173/ws"},
		{"secure origin host", "", "https://reader.example.com", "wss://reader.example.com/ws"},
		{"base url host wins", "http://api.example.com:8000/api", "https://reader.example.com", "wss://api.example.com:8000/ws"},
		{"scheme follows origin not base", "https://api.example.com", "http://localhost:5173", "ws://api.example.com/ws"},
		{"relative base falls back", "/api", "http://localhost:5173", "ws://localhost:5173/ws"},
		{"unparseable base falls back", "http://[::1", "http://localhost:5173", "ws://localhost:5173/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.baseURL, tt.origin, logger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInvalidOrigin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	for _, origin := range []string{"", "localhost", "http://[::1"} {
		_, err := Resolve("http://api.example.com", origin, logger)
		assert.True(t, errors.Is(err, core.ErrInvalidEndpoint), "origin %q: %v", origin, err)
	}
}
