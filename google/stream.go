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

package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"

	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// Stream converts a sequence of streamed GenerateContent responses into
// canonical events.
func Stream(ctx context.Context, model provider.Model, src iter.Seq2[*genai.GenerateContentResponse, error]) *provider.AssistantStream {
	return provider.Drive(ctx, newMachine(model), src)
}

type blockKind int

const (
	kindNone blockKind = iota
	kindText
	kindThinking
)

// machine infers block boundaries from the kind of each incoming part,
// since the API never announces them.
type machine struct {
	model provider.Model
	msg   *provider.AssistantMessage

	current      blockKind
	currentIndex int

	toolCounter int
	usedIDs     map[string]bool
}

func newMachine(model provider.Model) *machine {
	return &machine{
		model:   model,
		msg:     provider.NewAssistantMessage(model),
		usedIDs: make(map[string]bool),
	}
}

func (m *machine) Message() *provider.AssistantMessage { return m.msg }

func (m *machine) Apply(chunk *genai.GenerateContentResponse) ([]provider.AssistantEvent, bool, error) {
	if chunk == nil {
		return nil, false, nil
	}

	var events []provider.AssistantEvent
	if len(chunk.Candidates) > 0 && chunk.Candidates[0] != nil {
		candidate := chunk.Candidates[0]
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				events = append(events, m.applyPart(part)...)
			}
		}

		if candidate.FinishReason != "" {
			reason, err := mapFinishReason(candidate.FinishReason)
			if err != nil {
				return events, false, err
			}
			m.msg.StopReason = reason
			if reason == provider.StopReasonError {
				m.msg.ErrorMessage = fmt.Sprintf("generation stopped with finish reason %s", candidate.FinishReason)
				if candidate.FinishMessage != "" {
					m.msg.ErrorMessage += ": " + candidate.FinishMessage
				}
			}
		}
	}

	if u := chunk.UsageMetadata; u != nil {
		m.msg.Usage.Input = int(u.PromptTokenCount) - int(u.CachedContentTokenCount)
		m.msg.Usage.Output = int(u.CandidatesTokenCount) + int(u.ThoughtsTokenCount)
		m.msg.Usage.CacheRead = int(u.CachedContentTokenCount)
		m.msg.Usage.CacheWrite = 0
		m.msg.Usage.RecomputeTotal()
	}

	return events, false, nil
}

func (m *machine) Finish() ([]provider.AssistantEvent, error) {
	events := m.closeCurrent()
	if len(m.msg.ToolCalls()) > 0 {
		m.msg.StopReason = provider.StopReasonToolUse
		m.msg.ErrorMessage = ""
	}
	provider.CalculateCost(m.model, &m.msg.Usage)
	return events, nil
}

func (m *machine) applyPart(part *genai.Part) []provider.AssistantEvent {
	if part.FunctionCall != nil {
		return m.applyFunctionCall(part)
	}
	if part.Text == "" && len(part.ThoughtSignature) == 0 {
		return nil
	}

	kind := kindText
	if part.Thought {
		kind = kindThinking
	}

	var events []provider.AssistantEvent
	if m.current != kind {
		events = append(events, m.closeCurrent()...)
		m.current = kind
		m.currentIndex = len(m.msg.Content)
		if kind == kindThinking {
			m.msg.Content = append(m.msg.Content, provider.ThinkingContent{})
			events = append(events, provider.NewBlockEvent(provider.EventThinkingStart, m.currentIndex, "", m.msg))
		} else {
			m.msg.Content = append(m.msg.Content, provider.TextContent{})
			events = append(events, provider.NewBlockEvent(provider.EventTextStart, m.currentIndex, "", m.msg))
		}
	}

	signature := encodeSignature(part.ThoughtSignature)
	switch block := m.msg.Content[m.currentIndex].(type) {
	case provider.ThinkingContent:
		block.Thinking += part.Text
		block.Signature = retainSignature(block.Signature, signature)
		m.msg.Content[m.currentIndex] = block
		if part.Text != "" {
			events = append(events, provider.NewBlockEvent(provider.EventThinkingDelta, m.currentIndex, part.Text, m.msg))
		}
	case provider.TextContent:
		block.Text += part.Text
		block.Signature = retainSignature(block.Signature, signature)
		m.msg.Content[m.currentIndex] = block
		if part.Text != "" {
			events = append(events, provider.NewBlockEvent(provider.EventTextDelta, m.currentIndex, part.Text, m.msg))
		}
	}
	return events
}

func (m *machine) applyFunctionCall(part *genai.Part) []provider.AssistantEvent {
	events := m.closeCurrent()

	fc := part.FunctionCall
	call := provider.ToolCall{
		ID:               m.toolCallID(fc),
		Name:             fc.Name,
		Arguments:        provider.CloneArguments(fc.Args),
		ThoughtSignature: encodeSignature(part.ThoughtSignature),
	}
	idx := len(m.msg.Content)
	m.msg.Content = append(m.msg.Content, call)

	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte("{}")
	}

	return append(events,
		provider.NewBlockEvent(provider.EventToolCallStart, idx, "", m.msg),
		provider.NewBlockEvent(provider.EventToolCallDelta, idx, string(args), m.msg),
		provider.NewBlockEndEvent(idx, m.msg),
	)
}

// toolCallID keeps the provider ID when it is unique within the message
// and otherwise synthesizes name_<n>.
func (m *machine) toolCallID(fc *genai.FunctionCall) string {
	id := fc.ID
	for id == "" || m.usedIDs[id] {
		m.toolCounter++
		id = fc.Name + "_" + strconv.Itoa(m.toolCounter)
	}
	m.usedIDs[id] = true
	return id
}

func (m *machine) closeCurrent() []provider.AssistantEvent {
	if m.current == kindNone {
		return nil
	}
	m.current = kindNone
	return []provider.AssistantEvent{provider.NewBlockEndEvent(m.currentIndex, m.msg)}
}

// retainSignature never lets an empty signature erase a stored one.
func retainSignature(stored, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return stored
}

func encodeSignature(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func decodeSignature(sig string) []byte {
	if sig == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return nil
	}
	return b
}

func mapFinishReason(reason genai.FinishReason) (provider.StopReason, error) {
	switch reason {
	case "STOP":
		return provider.StopReasonStop, nil
	case "MAX_TOKENS":
		return provider.StopReasonLength, nil
	case "FINISH_REASON_UNSPECIFIED", "SAFETY", "RECITATION", "LANGUAGE", "OTHER", "BLOCKLIST",
		"PROHIBITED_CONTENT", "SPII", "MALFORMED_FUNCTION_CALL", "IMAGE_SAFETY",
		"UNEXPECTED_TOOL_CALL", "IMAGE_PROHIBITED_CONTENT", "NO_IMAGE", "IMAGE_RECITATION", "IMAGE_OTHER":
		return provider.StopReasonError, nil
	default:
		return "", fmt.Errorf("%w: %q", provider.ErrUnhandledStopReason, reason)
	}
}
