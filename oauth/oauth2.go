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

package oauth

import (
	"context"
	"maps"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is subtracted from issued expiries so tokens are
// refreshed before the server rejects them.
const DefaultExpiryMargin = 5 * time.Minute

// OAuth2Provider refreshes tokens with a standard refresh_token grant.
type OAuth2Provider struct {
	id     string
	name   string
	config *oauth2.Config
	margin time.Duration
	apiKey func(Credentials) string
}

// OAuth2Option configures an OAuth2Provider.
type OAuth2Option func(*OAuth2Provider)

// WithExpiryMargin overrides DefaultExpiryMargin.
func WithExpiryMargin(d time.Duration) OAuth2Option {
	return func(p *OAuth2Provider) {
		p.margin = d
	}
}

// WithAPIKeyFunc overrides how the API key is derived. The access token is
// used by default.
func WithAPIKeyFunc(fn func(Credentials) string) OAuth2Option {
	return func(p *OAuth2Provider) {
		p.apiKey = fn
	}
}

// NewOAuth2Provider creates a provider backed by config.
func NewOAuth2Provider(id, name string, config *oauth2.Config, opts ...OAuth2Option) *OAuth2Provider {
	p := &OAuth2Provider{
		id:     id,
		name:   name,
		config: config,
		margin: DefaultExpiryMargin,
		apiKey: func(c Credentials) string { return c.Access },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OAuth2Provider) ID() string   { return p.id }
func (p *OAuth2Provider) Name() string { return p.name }

// Refresh implements Provider.
func (p *OAuth2Provider) Refresh(ctx context.Context, creds Credentials) (Credentials, error) {
	// Without an access token the source always hits the token endpoint.
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.Refresh})
	tok, err := src.Token()
	if err != nil {
		return Credentials{}, err
	}

	refreshed := Credentials{
		Refresh: tok.RefreshToken,
		Access:  tok.AccessToken,
		Expires: tok.Expiry.Add(-p.margin),
		Extra:   maps.Clone(creds.Extra),
	}
	if refreshed.Refresh == "" {
		refreshed.Refresh = creds.Refresh
	}
	return refreshed, nil
}

// APIKey implements Provider.
func (p *OAuth2Provider) APIKey(creds Credentials) string {
	return p.apiKey(creds)
}
