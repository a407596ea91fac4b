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
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/KBchulan/jmReader/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recorder struct {
	name string
	log  *[]string
	mu   *sync.Mutex
}

func (r *recorder) Handle(_ context.Context, evt core.Event) error {
	r.mu.Lock()
	*r.log = append(*r.log, r.name+":"+evt.Kind)
	r.mu.Unlock()
	return nil
}

func newRecorders(names ...string) ([]*recorder, *[]string) {
	var log []string
	mu := &sync.Mutex{}
	out := make([]*recorder, 0, len(names))
	for _, n := range names {
		out = append(out, &recorder{name: n, log: &log, mu: mu})
	}
	return out, &log
}

func TestDispatchInRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a", "b", "c")
	for _, r := range recs {
		_, err := reg.Subscribe("item_added", r)
		require.NoError(t, err)
	}

	res := reg.Dispatch(context.Background(), core.Event{Kind: "item_added"})

	assert.Equal(t, Result{Delivered: 3}, res)
	assert.Equal(t, []string{"a:item_added", "b:item_added", "c:item_added"}, *log)
}

func TestDispatchKindIsolation(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a", "b")
	_, _ = reg.Subscribe("A", recs[0])
	_, _ = reg.Subscribe("B", recs[1])

	reg.Dispatch(context.Background(), core.Event{Kind: "A"})

	assert.Equal(t, []string{"a:A"}, *log)
}

func TestDispatchNoSubscribers(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a")
	_, _ = reg.Subscribe("comic_added", recs[0])

	res := reg.Dispatch(context.Background(), core.Event{Kind: "comic_added_v2"})

	assert.Equal(t, Result{}, res)
	assert.Empty(t, *log)
}

func TestSubscribeValidation(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, _ := newRecorders("a")

	_, err := reg.Subscribe("", recs[0])
	assert.True(t, errors.Is(err, core.ErrEmptyKind))

	_, err = reg.Subscribe("k", nil)
	assert.True(t, errors.Is(err, core.ErrNilHandler))
	assert.Empty(t, reg.Kinds())
}

func TestDuplicateRegistrationFiresTwice(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a")
	id1, _ := reg.Subscribe("k", recs[0])
	id2, _ := reg.Subscribe("k", recs[0])
	assert.NotEqual(t, id1, id2)

	reg.Dispatch(context.Background(), core.Event{Kind: "k"})
	assert.Equal(t, []string{"a:k", "a:k"}, *log)
}

func TestUnsubscribePrecision(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a", "b")
	idA, _ := reg.Subscribe("k", recs[0])
	_, _ = reg.Subscribe("k", recs[1])

	assert.False(t, reg.Unsubscribe("other", idA), "kind must match too")
	assert.True(t, reg.Unsubscribe("k", idA))
	assert.False(t, reg.Unsubscribe("k", idA), "second removal is a no-op")

	reg.Dispatch(context.Background(), core.Event{Kind: "k"})
	assert.Equal(t, []string{"b:k"}, *log)
}

func TestUnsubscribeHandlerRemovesFirstMatchOnly(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("a", "b")
	a, b := recs[0], recs[1]

	_, _ = reg.Subscribe("k", a)
	_, _ = reg.Subscribe("k", b)
	_, _ = reg.Subscribe("k", a)

	assert.True(t, reg.UnsubscribeHandler("k", a))
	reg.Dispatch(context.Background(), core.Event{Kind: "k"})

	assert.Equal(t, []string{"b:k", "a:k"}, *log)
	assert.Equal(t, 2, reg.Count("k"))
}

func TestUnsubscribeHandlerFuncNeverMatches(t *testing.T) {
	reg := NewRegistry(testLogger())
	fn := core.HandlerFunc(func(context.Context, core.Event) error { return nil })
	_, _ = reg.Subscribe("k", fn)

	assert.NotPanics(t, func() {
		assert.False(t, reg.UnsubscribeHandler("k", fn))
	})
	assert.Equal(t, 1, reg.Count("k"))
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("after")

	_, _ = reg.Subscribe("k", core.HandlerFunc(func(context.Context, core.Event) error {
		panic("boom")
	}))
	_, _ = reg.Subscribe("k", core.HandlerFunc(func(context.Context, core.Event) error {
		return errors.New("nope")
	}))
	_, _ = reg.Subscribe("k", recs[0])

	res := reg.Dispatch(context.Background(), core.Event{Kind: "k"})

	assert.Equal(t, Result{Delivered: 1, Failed: 2}, res)
	assert.Equal(t, []string{"after:k"}, *log)
	assert.Equal(t, uint64(2), reg.Failures())
}

func TestSelfUnsubscribeDuringDispatch(t *testing.T) {
	reg := NewRegistry(testLogger())
	recs, log := newRecorders("tail")

	var selfID core.SubscriptionID
	calls := 0
	selfID, _ = reg.Subscribe("k", core.HandlerFunc(func(context.Context, core.Event) error {
		calls++
		reg.Unsubscribe("k", selfID)
		return nil
	}))
	_, _ = reg.Subscribe("k", recs[0])

	reg.Dispatch(context.Background(), core.Event{Kind: "k"})
	reg.Dispatch(context.Background(), core.Event{Kind: "k"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"tail:k", "tail:k"}, *log)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry(testLogger())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id, err := reg.Subscribe("k", core.HandlerFunc(func(context.Context, core.Event) error { return nil }))
			if err == nil {
				reg.Unsubscribe("k", id)
			}
		}()
		go func() {
			defer wg.Done()
			reg.Dispatch(context.Background(), core.Event{Kind: "k"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Count("k"))
}
