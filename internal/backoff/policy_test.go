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

package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIsConstant(t *testing.T) {
	p := Fixed(5 * time.Second)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 5*time.Second, p.Next())
	}
	p.Reset()
	assert.Equal(t, 5*time.Second, p.Next())
}

func TestFixedDefaultsNonPositive(t *testing.T) {
	assert.Equal(t, DefaultDelay, Fixed(0).Next())
}

func TestExponentialGrowsToCap(t *testing.T) {
	p := Exponential(100*time.Millisecond, time.Second, 2, 0)

	assert.Equal(t, 100*time.Millisecond, p.Next())
	assert.Equal(t, 200*time.Millisecond, p.Next())
	assert.Equal(t, 400*time.Millisecond, p.Next())
	assert.Equal(t, 800*time.Millisecond, p.Next())
	assert.Equal(t, time.Second, p.Next())
	for i := 0; i < 50; i++ {
		assert.Equal(t, time.Second, p.Next(), "never stops retrying")
	}

	p.Reset()
	assert.Equal(t, 100*time.Millisecond, p.Next())
}

func TestExponentialJitterBounds(t *testing.T) {
	p := Exponential(time.Second, 10*time.Second, 2, 0.5)
	d := p.Next()
	assert.GreaterOrEqual(t, d, 500*time.Millisecond)
	assert.LessOrEqual(t, d, 1500*time.Millisecond)
}

func TestNewSelectsStrategy(t *testing.T) {
	p, err := New(Settings{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDelay, p.Next())

	p, err = New(Settings{Strategy: StrategyExponential, Initial: 50 * time.Millisecond, Max: time.Second, Multiplier: 3})
	require.NoError(t, err)
	d := p.Next()
	assert.InDelta(t, float64(50*time.Millisecond), float64(d), float64(25*time.Millisecond))

	_, err = New(Settings{Strategy: "linear"})
	assert.Error(t, err)
}
