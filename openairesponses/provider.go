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

package openairesponses

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// Provider streams assistant turns from the OpenAI Responses API.
type Provider struct {
	client  openai.Client
	options RequestOptions
}

// NewProvider creates a new Responses provider. Client options are passed
// to the SDK (API key, base URL, headers).
func NewProvider(opts RequestOptions, clientOpts ...option.RequestOption) *Provider {
	return &Provider{
		client:  openai.NewClient(clientOpts...),
		options: opts,
	}
}

// Stream implements polyagent.Provider.
func (p *Provider) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	params, err := BuildParams(model, c, p.options)
	if err != nil {
		return provider.Failed(ctx, model, fmt.Errorf("build responses request: %w", err))
	}

	var reqOpts []option.RequestOption
	if model.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(model.BaseURL))
	}
	for k, v := range model.Headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}

	stream := p.client.Responses.NewStreaming(ctx, params, reqOpts...)
	return Stream(ctx, model, provider.FromDecoder[responses.ResponseStreamEventUnion](stream))
}
