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

package google

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/provider"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultMaxAttempts = 3
)

// Config configures a Google provider.
type Config struct {
	// APIKey authenticates through the genai SDK client.
	APIKey string
	// AccessToken switches to raw HTTP streaming with a bearer token.
	AccessToken string
	BaseURL     string
	// MaxAttempts bounds how many empty responses are retried.
	MaxAttempts int
	HTTPClient  HTTPDoer
	Request     RequestOptions
}

// Provider streams assistant turns from the Gemini API.
type Provider struct {
	cfg    Config
	client *genai.Client
}

// NewProvider creates a new Google provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	p := &Provider{cfg: cfg}
	if cfg.AccessToken != "" {
		return p, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

// Stream implements polyagent.Provider.
func (p *Provider) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	contents, config, err := BuildRequest(model, c, p.cfg.Request)
	if err != nil {
		return provider.Failed(ctx, model, fmt.Errorf("build google request: %w", err))
	}

	var attempt Attempt
	if p.client != nil {
		attempt = p.sdkAttempt(model, contents, config)
	} else {
		attempt, err = p.httpAttempt(model, contents, config)
		if err != nil {
			return provider.Failed(ctx, model, err)
		}
	}

	attempts := make([]Attempt, p.cfg.MaxAttempts)
	for i := range attempts {
		attempts[i] = attempt
	}
	return StreamWithRetry(ctx, model, attempts, len(attempts))
}

func (p *Provider) sdkAttempt(model provider.Model, contents []*genai.Content, config *genai.GenerateContentConfig) Attempt {
	if len(model.Headers) > 0 {
		headers := http.Header{}
		for k, v := range model.Headers {
			headers.Set(k, v)
		}
		config.HTTPOptions = &genai.HTTPOptions{Headers: headers}
	}
	return func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error] {
		return p.client.Models.GenerateContentStream(ctx, model.ID, contents, config)
	}
}

func (p *Provider) httpAttempt(model provider.Model, contents []*genai.Content, config *genai.GenerateContentConfig) (Attempt, error) {
	body, err := RequestBody(contents, config)
	if err != nil {
		return nil, fmt.Errorf("encode google request: %w", err)
	}

	base := p.cfg.BaseURL
	if model.BaseURL != "" {
		base = model.BaseURL
	}
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", strings.TrimSuffix(base, "/"), model.ID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	for k, v := range model.Headers {
		header.Set(k, v)
	}
	return HTTPAttempt(p.cfg.HTTPClient, url, header, body), nil
}
