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

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	"github.com/alexandrevilain/polyagent-go/jsonrepair"
	"github.com/alexandrevilain/polyagent-go/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

// RequestOptions tunes a chat completions request.
type RequestOptions struct {
	MaxTokens int64
	// MaxTokensField names the output limit field; servers disagree on
	// max_tokens versus max_completion_tokens.
	MaxTokensField  string
	ReasoningEffort string
	Temperature     *float64
}

func (o RequestOptions) maxTokens(model provider.Model) int64 {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return int64(model.MaxTokens)
}

func (o RequestOptions) maxTokensField() string {
	if o.MaxTokensField != "" {
		return o.MaxTokensField
	}
	return "max_completion_tokens"
}

// Config configures an OpenAI-compatible provider.
type Config struct {
	BaseURL   string
	APIKey    string
	Transport Transport
	Request   RequestOptions
}

// Provider implements polyagent.Provider for OpenAI-compatible chat
// completion servers. Each turn is one non-streaming request whose answer
// is replayed as a canonical event sequence.
type Provider struct {
	cfg Config
}

// NewProvider creates a new OpenAI-compatible provider.
func NewProvider(cfg Config) *Provider {
	if cfg.Transport == nil {
		cfg.Transport = &HTTPTransport{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Provider{cfg: cfg}
}

// Stream implements polyagent.Provider.
func (p *Provider) Stream(ctx context.Context, model provider.Model, c provider.Context) *provider.AssistantStream {
	body, err := BuildBody(model, c, p.cfg.Request)
	if err != nil {
		return provider.Failed(ctx, model, fmt.Errorf("build chat completion request: %w", err))
	}

	base := p.cfg.BaseURL
	if model.BaseURL != "" {
		base = model.BaseURL
	}

	header := http.Header{}
	if p.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	for k, v := range model.Headers {
		header.Set(k, v)
	}

	req := &Request{
		URL:    strings.TrimSuffix(base, "/") + "/chat/completions",
		Header: header,
		Body:   body,
	}
	return Complete(ctx, model, p.cfg.Transport, req)
}

// Complete sends req through t and replays the answer on a stream.
func Complete(ctx context.Context, model provider.Model, t Transport, req *Request) *provider.AssistantStream {
	return provider.Drive(ctx, newMachine(model), send(ctx, t, req))
}

func send(ctx context.Context, t Transport, req *Request) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		resp, err := t.Do(ctx, req)
		yield(resp, err)
	}
}

var errNoChoices = errors.New("chat completion has no choices")

type machine struct {
	model provider.Model
	msg   *provider.AssistantMessage
}

func newMachine(model provider.Model) *machine {
	return &machine{model: model, msg: provider.NewAssistantMessage(model)}
}

func (m *machine) Message() *provider.AssistantMessage { return m.msg }

func (m *machine) Finish() ([]provider.AssistantEvent, error) {
	provider.CalculateCost(m.model, &m.msg.Usage)
	return nil, nil
}

func (m *machine) Apply(resp *Response) ([]provider.AssistantEvent, bool, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, &HTTPError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(resp.Body, &completion); err != nil {
		return nil, false, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, false, errNoChoices
	}
	choice := completion.Choices[0]

	var events []provider.AssistantEvent
	if reasoning := reasoningContent(resp.Body); reasoning != "" {
		events = append(events, m.block(provider.ThinkingContent{Thinking: reasoning}, provider.EventThinkingStart, provider.EventThinkingDelta, reasoning)...)
	}
	if text := choice.Message.Content; text != "" || len(choice.Message.ToolCalls) == 0 {
		events = append(events, m.block(provider.TextContent{Text: text}, provider.EventTextStart, provider.EventTextDelta, text)...)
	}
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		call := provider.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: jsonrepair.ParseObject(tc.Function.Arguments),
		}
		events = append(events, m.block(call, provider.EventToolCallStart, provider.EventToolCallDelta, tc.Function.Arguments)...)
	}

	m.setUsage(completion.Usage)

	reason, err := mapFinishReason(choice.FinishReason)
	if err != nil {
		return events, false, err
	}
	m.msg.StopReason = reason
	if reason == provider.StopReasonError {
		m.msg.ErrorMessage = fmt.Sprintf("model stopped with finish reason %q", choice.FinishReason)
	}
	return events, true, nil
}

// block appends a complete block and returns its start, delta and end
// events. The delta is omitted when empty.
func (m *machine) block(b provider.ContentBlock, start, delta provider.EventType, text string) []provider.AssistantEvent {
	idx := len(m.msg.Content)
	m.msg.Content = append(m.msg.Content, b)

	events := []provider.AssistantEvent{provider.NewBlockEvent(start, idx, "", m.msg)}
	if text != "" {
		events = append(events, provider.NewBlockEvent(delta, idx, text, m.msg))
	}
	return append(events, provider.NewBlockEndEvent(idx, m.msg))
}

func (m *machine) setUsage(u openai.CompletionUsage) {
	cached := int(u.PromptTokensDetails.CachedTokens)
	m.msg.Usage.Input = int(u.PromptTokens) - cached
	m.msg.Usage.Output = int(u.CompletionTokens)
	m.msg.Usage.CacheRead = cached
	m.msg.Usage.CacheWrite = 0
	m.msg.Usage.TotalTokens = int(u.TotalTokens)
	if m.msg.Usage.TotalTokens == 0 {
		m.msg.Usage.RecomputeTotal()
	}
}

// reasoningContent reads the non-standard reasoning field several
// compatible servers attach to the message.
func reasoningContent(body []byte) string {
	for _, path := range []string{"choices.0.message.reasoning_content", "choices.0.message.reasoning"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func mapFinishReason(reason string) (provider.StopReason, error) {
	switch reason {
	case "stop", "":
		return provider.StopReasonStop, nil
	case "length":
		return provider.StopReasonLength, nil
	case "tool_calls", "function_call":
		return provider.StopReasonToolUse, nil
	case "content_filter":
		return provider.StopReasonError, nil
	default:
		return "", fmt.Errorf("%w: %q", provider.ErrUnhandledStopReason, reason)
	}
}
