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

package anthropic

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"
	log "github.com/sirupsen/logrus"

	"github.com/alexandrevilain/polyagent-go/jsonrepair"
	"github.com/alexandrevilain/polyagent-go/provider"
)

const redactedThinking = "[Reasoning redacted]"

// Stream converts raw Messages API stream events into canonical events.
// When oauthNames is set, tool names are mapped back through the OAuth
// alias table restricted to the offered tools.
func Stream(ctx context.Context, model provider.Model, tools []provider.Tool, oauthNames bool, src iter.Seq2[anthropic.MessageStreamEventUnion, error]) *provider.AssistantStream {
	return provider.Drive(ctx, newMachine(model, tools, oauthNames), src)
}

// machine tracks one Messages API response.
type machine struct {
	model provider.Model
	msg   *provider.AssistantMessage

	// blocks maps the provider block index to the content index of
	// blocks that are still open.
	blocks      map[int64]int
	partialJSON map[int]string

	tools      []provider.Tool
	oauthNames bool
}

func newMachine(model provider.Model, tools []provider.Tool, oauthNames bool) *machine {
	return &machine{
		model:       model,
		msg:         provider.NewAssistantMessage(model),
		blocks:      make(map[int64]int),
		partialJSON: make(map[int]string),
		tools:       tools,
		oauthNames:  oauthNames,
	}
}

func (m *machine) Message() *provider.AssistantMessage { return m.msg }

func (m *machine) Apply(event anthropic.MessageStreamEventUnion) ([]provider.AssistantEvent, bool, error) {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		u := e.Message.Usage
		m.addUsage(u.InputTokens, u.OutputTokens, u.CacheReadInputTokens, u.CacheCreationInputTokens)
	case anthropic.ContentBlockStartEvent:
		return m.startBlock(e), false, nil
	case anthropic.ContentBlockDeltaEvent:
		return m.applyDelta(e), false, nil
	case anthropic.ContentBlockStopEvent:
		return m.stopBlock(e.Index), false, nil
	case anthropic.MessageDeltaEvent:
		if e.Delta.StopReason != "" {
			reason, err := mapStopReason(string(e.Delta.StopReason))
			if err != nil {
				return nil, false, err
			}
			m.msg.StopReason = reason
			if reason == provider.StopReasonError {
				m.msg.ErrorMessage = fmt.Sprintf("model stopped with reason %q", e.Delta.StopReason)
			}
		}
		u := e.Usage
		m.addUsage(u.InputTokens, u.OutputTokens, u.CacheReadInputTokens, u.CacheCreationInputTokens)
	case anthropic.MessageStopEvent:
		return nil, true, nil
	default:
		log.WithField("type", event.Type).Debug("ignoring anthropic stream event")
	}
	return nil, false, nil
}

func (m *machine) Finish() ([]provider.AssistantEvent, error) {
	open := make([]int64, 0, len(m.blocks))
	for idx := range m.blocks {
		open = append(open, idx)
	}
	slices.SortFunc(open, func(a, b int64) int { return m.blocks[a] - m.blocks[b] })

	var events []provider.AssistantEvent
	for _, idx := range open {
		events = append(events, m.stopBlock(idx)...)
	}
	provider.CalculateCost(m.model, &m.msg.Usage)
	return events, nil
}

func (m *machine) addUsage(input, output, cacheRead, cacheWrite int64) {
	m.msg.Usage.Input += int(input)
	m.msg.Usage.Output += int(output)
	m.msg.Usage.CacheRead += int(cacheRead)
	m.msg.Usage.CacheWrite += int(cacheWrite)
	m.msg.Usage.RecomputeTotal()
}

func (m *machine) startBlock(e anthropic.ContentBlockStartEvent) []provider.AssistantEvent {
	cb := e.ContentBlock
	idx := len(m.msg.Content)

	var kind provider.EventType
	switch cb.Type {
	case "text":
		m.msg.Content = append(m.msg.Content, provider.TextContent{Text: cb.Text})
		kind = provider.EventTextStart
	case "thinking":
		m.msg.Content = append(m.msg.Content, provider.ThinkingContent{Thinking: cb.Thinking, Signature: cb.Signature})
		kind = provider.EventThinkingStart
	case "redacted_thinking":
		m.msg.Content = append(m.msg.Content, provider.ThinkingContent{Thinking: redactedThinking, Signature: cb.Data})
		kind = provider.EventThinkingStart
	case "tool_use":
		name := cb.Name
		if m.oauthNames {
			name = FromWireName(name, m.tools)
		}
		m.msg.Content = append(m.msg.Content, provider.ToolCall{ID: cb.ID, Name: name, Arguments: map[string]any{}})
		m.partialJSON[idx] = ""
		kind = provider.EventToolCallStart
	default:
		log.WithField("block_type", cb.Type).Debug("ignoring anthropic content block")
		return nil
	}

	m.blocks[e.Index] = idx
	return []provider.AssistantEvent{provider.NewBlockEvent(kind, idx, "", m.msg)}
}

func (m *machine) applyDelta(e anthropic.ContentBlockDeltaEvent) []provider.AssistantEvent {
	idx, ok := m.blocks[e.Index]
	if !ok {
		return nil
	}

	d := e.Delta
	switch block := m.msg.Content[idx].(type) {
	case provider.TextContent:
		if d.Type != "text_delta" {
			return nil
		}
		block.Text += d.Text
		m.msg.Content[idx] = block
		return []provider.AssistantEvent{provider.NewBlockEvent(provider.EventTextDelta, idx, d.Text, m.msg)}

	case provider.ThinkingContent:
		switch d.Type {
		case "thinking_delta":
			block.Thinking += d.Thinking
			m.msg.Content[idx] = block
			return []provider.AssistantEvent{provider.NewBlockEvent(provider.EventThinkingDelta, idx, d.Thinking, m.msg)}
		case "signature_delta":
			block.Signature += d.Signature
			m.msg.Content[idx] = block
		}

	case provider.ToolCall:
		if d.Type != "input_json_delta" {
			return nil
		}
		partial := m.partialJSON[idx] + d.PartialJSON
		m.partialJSON[idx] = partial
		block.Arguments = jsonrepair.ParseObject(partial)
		m.msg.Content[idx] = block
		return []provider.AssistantEvent{provider.NewBlockEvent(provider.EventToolCallDelta, idx, d.PartialJSON, m.msg)}
	}
	return nil
}

func (m *machine) stopBlock(index int64) []provider.AssistantEvent {
	idx, ok := m.blocks[index]
	if !ok {
		return nil
	}
	delete(m.blocks, index)

	if block, ok := m.msg.Content[idx].(provider.ToolCall); ok {
		block.Arguments = jsonrepair.ParseObject(m.partialJSON[idx])
		m.msg.Content[idx] = block
		delete(m.partialJSON, idx)
	}
	return []provider.AssistantEvent{provider.NewBlockEndEvent(idx, m.msg)}
}

func mapStopReason(reason string) (provider.StopReason, error) {
	switch reason {
	case "end_turn", "pause_turn", "stop_sequence":
		return provider.StopReasonStop, nil
	case "max_tokens":
		return provider.StopReasonLength, nil
	case "tool_use":
		return provider.StopReasonToolUse, nil
	case "refusal", "sensitive":
		return provider.StopReasonError, nil
	default:
		return "", fmt.Errorf("%w: %q", provider.ErrUnhandledStopReason, reason)
	}
}
