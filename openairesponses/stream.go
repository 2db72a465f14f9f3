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
	"errors"
	"fmt"
	"iter"

	"github.com/openai/openai-go/responses"
	log "github.com/sirupsen/logrus"

	"github.com/alexandrevilain/polyagent-go/jsonrepair"
	"github.com/alexandrevilain/polyagent-go/provider"
)

// Stream converts raw Responses API stream events into canonical events.
func Stream(ctx context.Context, model provider.Model, src iter.Seq2[responses.ResponseStreamEventUnion, error]) *provider.AssistantStream {
	return provider.Drive(ctx, newMachine(model), src)
}

type blockKind int

const (
	kindNone blockKind = iota
	kindText
	kindThinking
	kindToolCall
)

// machine keeps at most one open block. Opening a block of any kind closes
// the previous one.
type machine struct {
	model provider.Model
	msg   *provider.AssistantMessage

	current      blockKind
	currentIndex int
	rawArgs      string
}

func newMachine(model provider.Model) *machine {
	return &machine{model: model, msg: provider.NewAssistantMessage(model)}
}

func (m *machine) Message() *provider.AssistantMessage { return m.msg }

func (m *machine) Apply(event responses.ResponseStreamEventUnion) ([]provider.AssistantEvent, bool, error) {
	switch event.Type {
	case "response.output_item.added":
		return m.openItem(event.Item), false, nil

	case "response.output_text.delta", "response.refusal.delta":
		return m.appendText(event.Delta.OfString), false, nil

	case "response.reasoning_summary_part.added":
		if m.current == kindThinking {
			if block := m.msg.Content[m.currentIndex].(provider.ThinkingContent); block.Thinking != "" {
				return m.appendThinking("\n\n"), false, nil
			}
		}

	case "response.reasoning_summary_text.delta":
		return m.appendThinking(event.Delta.OfString), false, nil

	case "response.function_call_arguments.delta":
		if m.current != kindToolCall {
			return nil, false, nil
		}
		m.rawArgs += event.Delta.OfString
		m.setArguments(m.rawArgs)
		return []provider.AssistantEvent{
			provider.NewBlockEvent(provider.EventToolCallDelta, m.currentIndex, event.Delta.OfString, m.msg),
		}, false, nil

	case "response.function_call_arguments.done":
		if m.current == kindToolCall {
			m.rawArgs = event.Arguments
			m.setArguments(m.rawArgs)
		}

	case "response.output_item.done":
		return m.closeItem(event.Item), false, nil

	case "response.completed", "response.incomplete", "response.failed":
		return nil, true, m.complete(event.Response)

	case "error":
		return nil, false, fmt.Errorf("responses API error %s: %s", event.Code, event.Message)

	default:
		log.WithField("type", event.Type).Debug("ignoring responses stream event")
	}
	return nil, false, nil
}

func (m *machine) Finish() ([]provider.AssistantEvent, error) {
	events := m.closeCurrent()
	stopped := m.msg.StopReason == "" || m.msg.StopReason == provider.StopReasonStop
	if stopped && len(m.msg.ToolCalls()) > 0 {
		m.msg.StopReason = provider.StopReasonToolUse
	}
	provider.CalculateCost(m.model, &m.msg.Usage)
	return events, nil
}

func (m *machine) openItem(item responses.ResponseOutputItemUnion) []provider.AssistantEvent {
	switch item.Type {
	case "message":
		return m.open(kindText, provider.TextContent{})
	case "reasoning":
		return m.open(kindThinking, provider.ThinkingContent{})
	case "function_call":
		events := m.open(kindToolCall, provider.ToolCall{
			ID:        item.CallID,
			Name:      item.Name,
			Arguments: map[string]any{},
		})
		m.rawArgs = item.Arguments
		if m.rawArgs != "" {
			m.setArguments(m.rawArgs)
		}
		return events
	default:
		log.WithField("item_type", item.Type).Debug("ignoring responses output item")
		return nil
	}
}

func (m *machine) open(kind blockKind, block provider.ContentBlock) []provider.AssistantEvent {
	events := m.closeCurrent()

	m.current = kind
	m.currentIndex = len(m.msg.Content)
	m.msg.Content = append(m.msg.Content, block)

	var t provider.EventType
	switch kind {
	case kindText:
		t = provider.EventTextStart
	case kindThinking:
		t = provider.EventThinkingStart
	default:
		t = provider.EventToolCallStart
	}
	return append(events, provider.NewBlockEvent(t, m.currentIndex, "", m.msg))
}

func (m *machine) appendText(delta string) []provider.AssistantEvent {
	var events []provider.AssistantEvent
	if m.current != kindText {
		events = m.open(kindText, provider.TextContent{})
	}
	block := m.msg.Content[m.currentIndex].(provider.TextContent)
	block.Text += delta
	m.msg.Content[m.currentIndex] = block
	return append(events, provider.NewBlockEvent(provider.EventTextDelta, m.currentIndex, delta, m.msg))
}

func (m *machine) appendThinking(delta string) []provider.AssistantEvent {
	var events []provider.AssistantEvent
	if m.current != kindThinking {
		events = m.open(kindThinking, provider.ThinkingContent{})
	}
	block := m.msg.Content[m.currentIndex].(provider.ThinkingContent)
	block.Thinking += delta
	m.msg.Content[m.currentIndex] = block
	return append(events, provider.NewBlockEvent(provider.EventThinkingDelta, m.currentIndex, delta, m.msg))
}

func (m *machine) setArguments(raw string) {
	block := m.msg.Content[m.currentIndex].(provider.ToolCall)
	block.Arguments = jsonrepair.ParseObject(raw)
	m.msg.Content[m.currentIndex] = block
}

func (m *machine) closeItem(item responses.ResponseOutputItemUnion) []provider.AssistantEvent {
	switch {
	case item.Type == "reasoning" && m.current == kindThinking:
		// The whole item is replayed on the next request.
		block := m.msg.Content[m.currentIndex].(provider.ThinkingContent)
		block.Signature = item.RawJSON()
		m.msg.Content[m.currentIndex] = block
	case item.Type == "function_call" && m.current == kindToolCall:
		if item.Arguments != "" {
			m.rawArgs = item.Arguments
			m.setArguments(m.rawArgs)
		}
	case item.Type == "message" && m.current == kindText:
	default:
		return nil
	}
	return m.closeCurrent()
}

func (m *machine) closeCurrent() []provider.AssistantEvent {
	if m.current == kindNone {
		return nil
	}
	m.current = kindNone
	m.rawArgs = ""
	return []provider.AssistantEvent{provider.NewBlockEndEvent(m.currentIndex, m.msg)}
}

func (m *machine) complete(resp responses.Response) error {
	u := resp.Usage
	cached := int(u.InputTokensDetails.CachedTokens)
	m.msg.Usage.Input = int(u.InputTokens) - cached
	m.msg.Usage.Output = int(u.OutputTokens)
	m.msg.Usage.CacheRead = cached
	m.msg.Usage.CacheWrite = 0
	m.msg.Usage.TotalTokens = int(u.TotalTokens)
	if m.msg.Usage.TotalTokens == 0 {
		m.msg.Usage.RecomputeTotal()
	}

	reason, err := mapStatus(resp.Status)
	if err != nil {
		return err
	}
	m.msg.StopReason = reason
	if reason == provider.StopReasonError {
		m.msg.ErrorMessage = fmt.Sprintf("response ended with status %q", resp.Status)
		if resp.Error.Message != "" {
			m.msg.ErrorMessage = resp.Error.Message
		}
	}
	return nil
}

var errMissingStatus = errors.New("response finished without a status")

func mapStatus(status responses.ResponseStatus) (provider.StopReason, error) {
	switch status {
	case "completed":
		return provider.StopReasonStop, nil
	case "incomplete":
		return provider.StopReasonLength, nil
	case "failed", "cancelled":
		return provider.StopReasonError, nil
	case "":
		return "", errMissingStatus
	default:
		return "", fmt.Errorf("%w: %q", provider.ErrUnhandledStopReason, status)
	}
}
