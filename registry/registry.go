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

// Package registry builds provider adapters from configuration and routes
// each turn to the adapter of the model's provider.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/alexandrevilain/polyagent-go/config"
	"github.com/alexandrevilain/polyagent-go/oauth"
	"github.com/alexandrevilain/polyagent-go/provider"
)

var (
	// ErrUnknownProvider is reported for models whose provider is not
	// registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrAPIMismatch is reported when a model names an API its provider
	// was not configured for.
	ErrAPIMismatch = errors.New("model api does not match provider")
)

// Streamer is the adapter surface shared by every vendor package.
type Streamer interface {
	Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream
}

// CredentialStore persists OAuth credentials between runs.
type CredentialStore interface {
	Load() (map[string]oauth.Credentials, error)
	Save(creds map[string]oauth.Credentials) error
}

type entry struct {
	api      provider.API
	streamer Streamer
}

// Registry dispatches turns by provider name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  log.FieldLogger
	oauth   *oauth.Service
	store   CredentialStore
	storeMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithOAuth enables subscription credentials for providers that configure
// oauth. Refreshed credentials are written back to store.
func WithOAuth(svc *oauth.Service, store CredentialStore) Option {
	return func(r *Registry) {
		r.oauth = svc
		r.store = store
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: map[string]entry{},
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromConfig creates a registry with one adapter per configured provider.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Registry, error) {
	r := New(opts...)
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		pc := cfg.Providers[name]

		if pc.OAuth != nil && r.oauth != nil {
			r.Register(name, pc.API, &oauthStreamer{registry: r, name: name, cfg: pc})
			continue
		}

		s, err := build(ctx, pc, pc.APIKey, false)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		r.Register(name, pc.API, s)
	}
	return r, nil
}

// Register adds s under name, replacing any previous adapter.
func (r *Registry) Register(name string, api provider.API, s Streamer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{api: api, streamer: s}
}

// Providers lists registered provider names in lexical order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Stream routes the turn to the adapter registered for model.Provider.
func (r *Registry) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	r.mu.RLock()
	e, ok := r.entries[model.Provider]
	r.mu.RUnlock()

	if !ok {
		return provider.Failed(ctx, model, fmt.Errorf("%w: %q", ErrUnknownProvider, model.Provider))
	}
	if model.API != e.api {
		return provider.Failed(ctx, model, fmt.Errorf("%w: %s uses %s, model asks for %s", ErrAPIMismatch, model.Provider, e.api, model.API))
	}

	r.logger.WithFields(log.Fields{
		"provider": model.Provider,
		"model":    model.ID,
		"api":      model.API,
	}).Debug("streaming turn")

	return e.streamer.Stream(ctx, model, c)
}

// resolve returns the API key to use for name, refreshing and persisting
// credentials as needed. ok is false when no credentials are stored.
func (r *Registry) resolve(ctx context.Context, name string) (key string, ok bool, err error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	creds, err := r.store.Load()
	if err != nil {
		return "", false, err
	}

	res, err := r.oauth.Resolve(ctx, name, creds)
	if err != nil || res == nil {
		return "", false, err
	}

	if res.Refreshed {
		creds[name] = res.Credentials
		if err := r.store.Save(creds); err != nil {
			r.logger.WithError(err).WithField("provider", name).Warn("failed to persist refreshed credentials")
		}
	}
	return res.APIKey, true, nil
}

// oauthStreamer builds a fresh adapter for every turn so that refreshed
// tokens are picked up.
type oauthStreamer struct {
	registry *Registry
	name     string
	cfg      config.ProviderConfig
}

func (s *oauthStreamer) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	key, ok, err := s.registry.resolve(ctx, s.name)
	if err != nil {
		return provider.Failed(ctx, model, err)
	}

	useToken := ok
	if !ok {
		key = s.cfg.APIKey
	}

	adapter, err := build(ctx, s.cfg, key, useToken)
	if err != nil {
		return provider.Failed(ctx, model, err)
	}
	return adapter.Stream(ctx, model, c)
}
