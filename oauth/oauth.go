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

// Package oauth resolves subscription credentials into API keys, refreshing
// expired tokens on demand.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrUnknownProvider is returned for provider IDs that were never
// registered.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// Credentials are the stored tokens of one provider.
type Credentials struct {
	Refresh string            `json:"refresh"`
	Access  string            `json:"access"`
	Expires time.Time         `json:"expires"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Expired reports whether the access token must be refreshed at now.
func (c Credentials) Expired(now time.Time) bool {
	return !now.Before(c.Expires)
}

// Provider refreshes tokens for one OAuth issuer.
type Provider interface {
	ID() string
	Name() string
	// Refresh exchanges the refresh token for new credentials.
	Refresh(ctx context.Context, creds Credentials) (Credentials, error)
	// APIKey derives the value sent to the model API.
	APIKey(creds Credentials) string
}

// RefreshError wraps a failed refresh with the provider it came from.
type RefreshError struct {
	Provider string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s credentials: %v", e.Provider, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Registry holds the known providers by ID.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same ID.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs lists registered provider IDs in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
