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

// Package config loads the YAML configuration and the OAuth credentials file
// used by command line front ends.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alexandrevilain/polyagent-go/provider"
)

const (
	DefaultLogLevel        = "info"
	DefaultCredentialsFile = "credentials.json"
)

// Config is the top level configuration file.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	DefaultModel    string                    `yaml:"default_model"`
	LogLevel        string                    `yaml:"log_level"`
	LogFile         string                    `yaml:"log_file"`
	CredentialsFile string                    `yaml:"credentials_file"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one configured vendor endpoint.
type ProviderConfig struct {
	API         provider.API      `yaml:"api"`
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	Headers     map[string]string `yaml:"headers"`
	OAuth       *OAuthConfig      `yaml:"oauth"`
	MaxAttempts int               `yaml:"max_attempts"`
	// MaxTokensField names the output limit field of chat completion
	// servers, "max_completion_tokens" when empty.
	MaxTokensField string        `yaml:"max_tokens_field"`
	Models         []ModelConfig `yaml:"models"`
}

// OAuthConfig enables subscription credentials for a provider.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

type ModelConfig struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Reasoning     bool               `yaml:"reasoning"`
	ContextWindow int                `yaml:"context_window"`
	MaxTokens     int                `yaml:"max_tokens"`
	Cost          provider.ModelCost `yaml:"cost"`
}

// Load reads the configuration at path. A .env file next to it is loaded
// into the environment first, then ${VAR} references in the YAML are
// expanded.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = DefaultCredentialsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var knownAPIs = []provider.API{
	provider.APIAnthropicMessages,
	provider.APIGoogleGenerativeAI,
	provider.APIOpenAIResponses,
	provider.APIOpenAICompletions,
}

// Validate checks that every provider uses a known API and that the
// defaults point at a configured model.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range c.Providers {
		if !slices.Contains(knownAPIs, p.API) {
			errs = append(errs, fmt.Errorf("provider %q: unknown api %q", name, p.API))
		}
		if p.OAuth != nil && p.OAuth.TokenURL == "" {
			errs = append(errs, fmt.Errorf("provider %q: oauth.token_url is required", name))
		}
		for i, m := range p.Models {
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("provider %q: model %d has no id", name, i))
			}
		}
	}

	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider %q is not configured", c.DefaultProvider))
		} else if c.DefaultModel != "" {
			if _, err := c.Model(c.DefaultProvider, c.DefaultModel); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Model resolves a configured model into its provider description.
func (c *Config) Model(providerName, modelID string) (provider.Model, error) {
	p, ok := c.Providers[providerName]
	if !ok {
		return provider.Model{}, fmt.Errorf("provider %q is not configured", providerName)
	}

	idx := slices.IndexFunc(p.Models, func(m ModelConfig) bool { return m.ID == modelID })
	if idx < 0 {
		return provider.Model{}, fmt.Errorf("model %q is not configured for provider %q", modelID, providerName)
	}
	m := p.Models[idx]

	name := m.Name
	if name == "" {
		name = m.ID
	}

	return provider.Model{
		ID:            m.ID,
		Name:          name,
		API:           p.API,
		Provider:      providerName,
		BaseURL:       p.BaseURL,
		Reasoning:     m.Reasoning,
		ContextWindow: m.ContextWindow,
		MaxTokens:     m.MaxTokens,
		Cost:          m.Cost,
		Headers:       p.Headers,
	}, nil
}

// DefaultModelSpec returns the model selected by default_provider and
// default_model.
func (c *Config) DefaultModelSpec() (provider.Model, error) {
	if c.DefaultProvider == "" || c.DefaultModel == "" {
		return provider.Model{}, errors.New("no default model configured")
	}
	return c.Model(c.DefaultProvider, c.DefaultModel)
}
