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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"

	DefaultDelay = 5 * time.Second
)

// Policy yields the wait before each reconnect attempt. It is not safe for
// concurrent use; the connection manager calls it under its own lock.
type Policy interface {
	Next() time.Duration
	Reset()
}

type Settings struct {
	Strategy   string
	Delay      time.Duration
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

type policy struct {
	b backoff.BackOff
}

func (p *policy) Next() time.Duration { return p.b.NextBackOff() }
func (p *policy) Reset()              { p.b.Reset() }

// Fixed waits d before every attempt, forever.
func Fixed(d time.Duration) Policy {
	if d <= 0 {
		d = DefaultDelay
	}
	return &policy{b: backoff.NewConstantBackOff(d)}
}

// Exponential grows the wait from initial to max with the given jitter
// factor and never gives up.
func Exponential(initial, max time.Duration, multiplier, jitter float64) Policy {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	if max > 0 {
		b.MaxInterval = max
	}
	if multiplier >= 1 {
		b.Multiplier = multiplier
	}
	if jitter >= 0 && jitter < 1 {
		b.RandomizationFactor = jitter
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return &policy{b: b}
}

func New(s Settings) (Policy, error) {
	switch s.Strategy {
	case StrategyFixed, "":
		return Fixed(s.Delay), nil
	case StrategyExponential:
		return Exponential(s.Initial, s.Max, s.Multiplier, s.Jitter), nil
	default:
		return nil, fmt.Errorf("unknown reconnect strategy %q", s.Strategy)
	}
}
