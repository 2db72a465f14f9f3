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

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// Option configures an Agent at creation time.
type Option func(*Agent)

// IDGenerator generates unique identifiers given a prefix (e.g. "run").
type IDGenerator func(prefix string) string

// DefaultIDGenerator returns IDs in the format "prefix-<short-uuid>".
func DefaultIDGenerator(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// MessageSource supplies messages injected into a running loop. Returning
// no messages means there is nothing to inject.
type MessageSource func(ctx context.Context) []AgentMessage

// WithModel sets the model every turn is sent to.
func WithModel(model provider.Model) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithTools sets the available tools.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) {
		a.tools = tools
	}
}

// WithSteering sets the source polled after each tool result. Messages it
// yields interrupt the remaining tool calls of the turn.
func WithSteering(src MessageSource) Option {
	return func(a *Agent) {
		a.steering = src
	}
}

// WithFollowUp sets the source consulted when a turn ends without tool
// calls. Messages it yields start another turn.
func WithFollowUp(src MessageSource) Option {
	return func(a *Agent) {
		a.followUp = src
	}
}

// WithConverter replaces DefaultConvert.
func WithConverter(convert ConvertFunc) Option {
	return func(a *Agent) {
		a.convert = convert
	}
}

// WithStrategy sets a loop strategy deciding whether another turn may start.
func WithStrategy(s LoopStrategy) Option {
	return func(a *Agent) {
		a.strategy = s
	}
}

// WithHooks sets lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(a *Agent) {
		a.hooks = h
	}
}

// WithIDGenerator sets a custom ID generator for run IDs.
func WithIDGenerator(gen IDGenerator) Option {
	return func(a *Agent) {
		a.idGenerator = gen
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}
