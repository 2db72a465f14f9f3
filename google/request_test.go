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
	"testing"

	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/provider"
)

func TestBuildRequest(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	model := testModel
	model.Reasoning = true
	model.MaxTokens = 8192

	c := provider.Context{
		SystemPrompt: "Be brief.",
		Tools: []provider.Tool{{
			Name:        "read",
			Description: "Read a file",
			Parameters:  map[string]any{"type": "object"},
		}},
		Messages: []provider.Message{
			provider.NewUserMessage("read a and b"),
			&provider.AssistantMessage{
				StopReason: provider.StopReasonToolUse,
				Content: []provider.ContentBlock{
					provider.ThinkingContent{Thinking: "plan", Signature: encodeSignature([]byte("sig"))},
					provider.ToolCall{ID: "read_1", Name: "read", Arguments: map[string]any{"path": "a"}},
					provider.ToolCall{ID: "read_2", Name: "read", Arguments: map[string]any{"path": "b"}},
				},
			},
			&provider.ToolResultMessage{ToolCallID: "read_1", ToolName: "read", Content: provider.Text("A")},
			&provider.ToolResultMessage{ToolCallID: "read_2", ToolName: "read", Content: provider.Text("nope"), IsError: true},
			&provider.AssistantMessage{StopReason: provider.StopReasonAborted, Content: provider.Text("partial")},
		},
	}

	contents, config, err := BuildRequest(model, c, RequestOptions{ThinkingBudget: 1024})
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(contents).To(HaveLen(3))
	g.Expect(contents[1].Role).To(Equal(genai.RoleModel))
	g.Expect(contents[1].Parts[0].Thought).To(BeTrue())
	g.Expect(contents[1].Parts[0].ThoughtSignature).To(Equal([]byte("sig")))
	g.Expect(contents[1].Parts[2].FunctionCall.Args).To(Equal(map[string]any{"path": "b"}))

	results := contents[2]
	g.Expect(results.Role).To(Equal(genai.RoleUser))
	g.Expect(results.Parts).To(HaveLen(2))
	g.Expect(results.Parts[0].FunctionResponse.Response).To(Equal(map[string]any{"output": "A"}))
	g.Expect(results.Parts[1].FunctionResponse.Response).To(Equal(map[string]any{"error": "nope"}))

	g.Expect(config.SystemInstruction.Parts[0].Text).To(Equal("Be brief."))
	g.Expect(config.MaxOutputTokens).To(Equal(int32(8192)))
	g.Expect(config.ThinkingConfig.IncludeThoughts).To(BeTrue())
	g.Expect(*config.ThinkingConfig.ThinkingBudget).To(Equal(int32(1024)))
	g.Expect(config.Tools[0].FunctionDeclarations[0].Name).To(Equal("read"))

	body, err := RequestBody(contents, config)
	g.Expect(err).ToNot(HaveOccurred())
	parsed := gjson.ParseBytes(body)
	g.Expect(parsed.Get("contents.#").Int()).To(Equal(int64(3)))
	g.Expect(parsed.Get("systemInstruction.parts.0.text").String()).To(Equal("Be brief."))
	g.Expect(parsed.Get("generationConfig.maxOutputTokens").Int()).To(Equal(int64(8192)))
	g.Expect(parsed.Get("tools.0.functionDeclarations.0.name").String()).To(Equal("read"))
}
