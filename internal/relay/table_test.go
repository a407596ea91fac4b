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

package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddAndLookup(t *testing.T) {
	table := NewTable()
	table.Add(&Route{Kind: "comic_added", Sinks: []string{"kafka-main"}})

	got, ok := table.Lookup("comic_added")
	require.True(t, ok)
	assert.Equal(t, []string{"kafka-main"}, got.Sinks)

	_, ok = table.Lookup("comic_deleted")
	assert.False(t, ok)
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	table.Add(&Route{Kind: "comic_added", Sinks: []string{"kafka-main"}})
	table.Remove("comic_added")

	_, ok := table.Lookup("comic_added")
	assert.False(t, ok)
	assert.Empty(t, table.Kinds())
}

func TestTableReplaceAll(t *testing.T) {
	table := NewTable()
	table.Add(&Route{Kind: "old", Sinks: []string{"a"}})

	table.ReplaceAll([]*Route{
		{Kind: "new-b", Sinks: []string{"b"}},
		{Kind: "new-a", Sinks: []string{"a"}},
	})

	_, ok := table.Lookup("old")
	assert.False(t, ok)
	assert.Equal(t, []string{"new-a", "new-b"}, table.Kinds())
}

func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Add(&Route{Kind: "comic_added", Sinks: []string{"s"}})
			table.Lookup("comic_added")
			table.Kinds()
		}()
	}
	wg.Wait()
}
