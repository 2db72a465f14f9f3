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

import (
	"context"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// Hooks contains optional callbacks for agent lifecycle events.
// All fields default to nil (no-op). Safe to use as zero value.
type Hooks struct {
	// OnRunStart is called when a run begins, before the first model call.
	// An error ends the run.
	OnRunStart func(ctx context.Context, runID string) error

	// TransformContext rewrites the transcript sent to the provider for one
	// turn, e.g. to prune old messages. The run's own transcript is left
	// untouched.
	TransformContext func(ctx context.Context, messages []AgentMessage) ([]AgentMessage, error)

	// OnTurnEnd is called after each turn (model response + tool
	// execution). An error ends the run.
	OnTurnEnd func(ctx context.Context, turn TurnResult) error

	// OnFinish is called after the run completes successfully.
	OnFinish func(ctx context.Context, result RunResult) error

	// OnError is called when the run fails, before agent_end is emitted.
	OnError func(ctx context.Context, err error)
}

// TurnResult holds information about a single turn.
type TurnResult struct {
	Turn        int
	Message     *provider.AssistantMessage
	ToolResults []*provider.ToolResultMessage
}

// RunResult holds accumulated information about the entire run.
type RunResult struct {
	RunID string
	// Messages is every message the run appended to the transcript.
	Messages   []AgentMessage
	Usage      provider.Usage
	StopReason provider.StopReason
}
