// Licensed to Alexandre VILAIN under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Alexandre VILAIN licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package polyagent

import "github.com/alexandrevilain/polyagent-go/provider"

// LoopState holds state for the agent loop strategy decision.
type LoopState struct {
	// Turns is the number of completed turns.
	Turns      int
	Messages   []AgentMessage
	StopReason provider.StopReason
}

// LoopStrategy determines whether another turn may start.
// Returns true to continue, false to stop.
type LoopStrategy func(state LoopState) bool

// MaxTurns returns a strategy that allows up to n turns.
func MaxTurns(n int) LoopStrategy {
	return func(state LoopState) bool {
		return state.Turns < n
	}
}

// UntilStopReason returns a strategy that stops once the last turn ended
// with one of reasons.
func UntilStopReason(reasons ...provider.StopReason) LoopStrategy {
	set := make(map[provider.StopReason]bool, len(reasons))
	for _, r := range reasons {
		set[r] = true
	}
	return func(state LoopState) bool {
		if state.Turns == 0 {
			return true
		}
		return !set[state.StopReason]
	}
}

// CombineStrategies returns a strategy that continues only if ALL
// sub-strategies return true.
func CombineStrategies(strategies ...LoopStrategy) LoopStrategy {
	return func(state LoopState) bool {
		for _, s := range strategies {
			if !s(state) {
				return false
			}
		}
		return true
	}
}

// unbounded never stops the loop on its own.
func unbounded(LoopState) bool { return true }
