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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Resolution is the outcome of resolving a provider's credentials.
type Resolution struct {
	Credentials Credentials
	APIKey      string
	// Refreshed is set when Credentials differ from the stored ones and
	// should be persisted.
	Refreshed bool
}

// Service resolves credentials against a registry.
type Service struct {
	registry *Registry
	now      func() time.Time
	logger   log.FieldLogger
	group    singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new credential service.
func NewService(registry *Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		now:      time.Now,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns usable credentials for providerID from creds, refreshing
// them when they have expired. It returns a nil Resolution and a nil error
// when creds holds nothing for the provider, so callers can fall back to
// another authentication mode. Concurrent refreshes of the same provider
// share one call.
func (s *Service) Resolve(ctx context.Context, providerID string, creds map[string]Credentials) (*Resolution, error) {
	p, ok := s.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	current, ok := creds[providerID]
	if !ok {
		return nil, nil
	}

	refreshed := false
	if current.Expired(s.now()) {
		v, err, _ := s.group.Do(providerID, func() (any, error) {
			return p.Refresh(ctx, current)
		})
		if err != nil {
			return nil, &RefreshError{Provider: providerID, Err: err}
		}
		current = v.(Credentials)
		refreshed = true

		s.logger.WithFields(log.Fields{
			"provider": providerID,
			"expires":  current.Expires,
		}).Info("refreshed oauth credentials")
	}

	return &Resolution{
		Credentials: current,
		APIKey:      p.APIKey(current),
		Refreshed:   refreshed,
	}, nil
}
