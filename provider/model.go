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

package provider

// API identifies the wire protocol a model is served over.
type API string

const (
	APIAnthropicMessages  API = "anthropic-messages"
	APIGoogleGenerativeAI API = "google-generative-ai"
	APIOpenAIResponses    API = "openai-responses"
	APIOpenAICompletions  API = "openai-completions"
)

// ModelCost is the price per million tokens.
type ModelCost struct {
	Input      float64 `json:"input" yaml:"input"`
	Output     float64 `json:"output" yaml:"output"`
	CacheRead  float64 `json:"cacheRead" yaml:"cache_read"`
	CacheWrite float64 `json:"cacheWrite" yaml:"cache_write"`
}

type Model struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	API           API               `json:"api"`
	Provider      string            `json:"provider"`
	BaseURL       string            `json:"baseUrl,omitempty"`
	Reasoning     bool              `json:"reasoning"`
	ContextWindow int               `json:"contextWindow"`
	MaxTokens     int               `json:"maxTokens"`
	Cost          ModelCost         `json:"cost"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// CalculateCost fills usage.Cost from the model's pricing and returns it.
func CalculateCost(model Model, usage *Usage) Cost {
	const perMillion = 1_000_000
	usage.Cost.Input = model.Cost.Input * float64(usage.Input) / perMillion
	usage.Cost.Output = model.Cost.Output * float64(usage.Output) / perMillion
	usage.Cost.CacheRead = model.Cost.CacheRead * float64(usage.CacheRead) / perMillion
	usage.Cost.CacheWrite = model.Cost.CacheWrite * float64(usage.CacheWrite) / perMillion
	usage.Cost.Total = usage.Cost.Input + usage.Cost.Output + usage.Cost.CacheRead + usage.Cost.CacheWrite
	return usage.Cost
}
