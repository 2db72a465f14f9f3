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

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestDecodeMessage_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]Message{
		"user": &UserMessage{
			Content: []ContentBlock{
				TextContent{Text: "look"},
				ImageContent{Data: "aGk=", MimeType: "image/png"},
			},
			Timestamp: ts,
		},
		"assistant": &AssistantMessage{
			Content: []ContentBlock{
				ThinkingContent{Thinking: "hmm", Signature: "sig"},
				TextContent{Text: "calling"},
				ToolCall{ID: "call_1", Name: "read", Arguments: map[string]any{"path": "a.txt"}, ThoughtSignature: "ts"},
			},
			API:        APIAnthropicMessages,
			Provider:   "anthropic",
			Model:      "claude",
			Usage:      Usage{Input: 3, Output: 4, CacheRead: 1, TotalTokens: 8, Cost: Cost{Input: 0.5, Total: 0.5}},
			StopReason: StopReasonToolUse,
			Timestamp:  ts,
		},
		"failed assistant": &AssistantMessage{
			Content:      []ContentBlock{},
			StopReason:   StopReasonError,
			ErrorMessage: "boom",
			Timestamp:    ts,
		},
		"tool result": &ToolResultMessage{
			ToolCallID: "call_1",
			ToolName:   "read",
			Content:    Text("hi"),
			Details:    json.RawMessage(`{"bytes":2}`),
			IsError:    true,
			Timestamp:  ts,
		},
	}

	for name, msg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			data, err := json.Marshal(msg)
			g.Expect(err).ToNot(HaveOccurred())

			decoded, err := DecodeMessage(data)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(decoded).To(Equal(msg))
		})
	}
}

func TestDecodeContent(t *testing.T) {
	tests := map[string]struct {
		input         string
		expected      []ContentBlock
		expectedError string
	}{
		"null": {
			input:    `null`,
			expected: []ContentBlock{},
		},
		"plain string": {
			input:    `"hello"`,
			expected: Text("hello"),
		},
		"tool call without arguments": {
			input:    `[{"type":"toolCall","id":"c1","name":"ls"}]`,
			expected: []ContentBlock{ToolCall{ID: "c1", Name: "ls"}},
		},
		"object": {
			input:         `{"type":"text"}`,
			expectedError: "content must be an array or a string",
		},
		"unknown block": {
			input:         `[{"type":"text","text":"a"},{"type":"video"}]`,
			expectedError: `unknown content type "video"`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			blocks, err := DecodeContent([]byte(test.input))
			if test.expectedError != "" {
				g.Expect(err).To(MatchError(test.expectedError))
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(blocks).To(Equal(test.expected))
		})
	}
}

func TestDecodeMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := DecodeMessage([]byte(`{"role":"system","content":"x"}`))
	g.Expect(errors.Is(err, ErrUnknownRole)).To(BeTrue())
	g.Expect(err).To(MatchError(`unknown message role: "system"`))
}
