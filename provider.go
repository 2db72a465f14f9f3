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

// Provider is the interface that AI provider implementations must implement.
// It streams a single assistant turn as canonical events.
//
// Implementations never fail synchronously: every failure, including one
// to build the request, is reported as the terminal error event of the
// returned stream.
type Provider interface {
	Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream

// Stream implements Provider.
func (f ProviderFunc) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	return f(ctx, model, c)
}
