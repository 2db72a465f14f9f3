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

package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"golang.org/x/oauth2"

	"github.com/alexandrevilain/polyagent-go/anthropic"
	"github.com/alexandrevilain/polyagent-go/config"
	"github.com/alexandrevilain/polyagent-go/google"
	"github.com/alexandrevilain/polyagent-go/oauth"
	"github.com/alexandrevilain/polyagent-go/openai"
	"github.com/alexandrevilain/polyagent-go/openairesponses"
	"github.com/alexandrevilain/polyagent-go/provider"
)

// build creates the adapter for pc. When token is set, key is an OAuth
// access token rather than an API key.
func build(ctx context.Context, pc config.ProviderConfig, key string, token bool) (Streamer, error) {
	switch pc.API {
	case provider.APIAnthropicMessages:
		var opts []anthropicopt.RequestOption
		if token {
			opts = anthropic.OAuthClientOptions(key)
		} else if key != "" {
			opts = append(opts, anthropicopt.WithAPIKey(key))
		}
		if pc.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(pc.BaseURL))
		}
		return anthropic.NewProvider(anthropic.RequestOptions{OAuthNames: token}, opts...), nil

	case provider.APIOpenAIResponses:
		var opts []openaiopt.RequestOption
		if key != "" {
			opts = append(opts, openaiopt.WithAPIKey(key))
		}
		if pc.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(pc.BaseURL))
		}
		return openairesponses.NewProvider(openairesponses.RequestOptions{}, opts...), nil

	case provider.APIGoogleGenerativeAI:
		cfg := google.Config{
			BaseURL:     pc.BaseURL,
			MaxAttempts: pc.MaxAttempts,
		}
		if token {
			cfg.AccessToken = key
		} else {
			cfg.APIKey = key
		}
		return google.NewProvider(ctx, cfg)

	case provider.APIOpenAICompletions:
		return openai.NewProvider(openai.Config{
			BaseURL: pc.BaseURL,
			APIKey:  key,
			Request: openai.RequestOptions{MaxTokensField: pc.MaxTokensField},
		}), nil

	default:
		return nil, fmt.Errorf("unsupported api %q", pc.API)
	}
}

// OAuthProviders returns an oauth registry with one refresh_token provider
// per configured provider that enables oauth.
func OAuthProviders(cfg *config.Config) *oauth.Registry {
	r := oauth.NewRegistry()
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		oc := cfg.Providers[name].OAuth
		if oc == nil {
			continue
		}
		r.Register(oauth.NewOAuth2Provider(name, name, &oauth2.Config{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scopes:       oc.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: oc.TokenURL},
		}))
	}
	return r
}
