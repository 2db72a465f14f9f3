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

package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alexandrevilain/polyagent-go/provider"
)

const oauthBetaHeader = "oauth-2025-04-20"

// Provider streams assistant turns from the Anthropic Messages API.
type Provider struct {
	client  anthropic.Client
	options RequestOptions
}

// NewProvider creates a new Anthropic provider. Client options are passed
// to the SDK (API key, base URL, headers).
func NewProvider(opts RequestOptions, clientOpts ...option.RequestOption) *Provider {
	return &Provider{
		client:  anthropic.NewClient(clientOpts...),
		options: opts,
	}
}

// OAuthClientOptions authenticates with a subscription access token
// instead of an API key.
func OAuthClientOptions(accessToken string) []option.RequestOption {
	return []option.RequestOption{
		option.WithAuthToken(accessToken),
		option.WithHeader("anthropic-beta", oauthBetaHeader),
	}
}

// Stream implements polyagent.Provider.
func (p *Provider) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	params, err := BuildParams(model, c, p.options)
	if err != nil {
		return provider.Failed(ctx, model, fmt.Errorf("build anthropic request: %w", err))
	}

	var reqOpts []option.RequestOption
	for k, v := range model.Headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}

	stream := p.client.Messages.NewStreaming(ctx, params, reqOpts...)
	return Stream(ctx, model, c.Tools, p.options.OAuthNames, provider.FromDecoder[anthropic.MessageStreamEventUnion](stream))
}
