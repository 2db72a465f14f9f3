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
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/sjson"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// BuildBody renders the chat completions request body for c. Fields the
// SDK params do not model are patched in afterwards.
func BuildBody(model provider.Model, c provider.Context, opts RequestOptions) ([]byte, error) {
	messages, err := convertMessages(c.SystemPrompt, c.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.ID),
		Messages: messages,
		Tools:    convertTools(c.Tools),
	}
	if opts.Temperature != nil {
		params.Temperature = param.NewOpt(*opts.Temperature)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode chat completion request: %w", err)
	}

	patches := map[string]any{"stream": false}
	if maxTokens := opts.maxTokens(model); maxTokens > 0 {
		patches[opts.maxTokensField()] = maxTokens
	}
	if model.Reasoning && opts.ReasoningEffort != "" {
		patches["reasoning_effort"] = opts.ReasoningEffort
	}
	for path, value := range patches {
		if body, err = sjson.SetBytes(body, path, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return body, nil
}

// convertMessages converts canonical messages to chat completion format.
func convertMessages(systemPrompt string, msgs []provider.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		result = append(result, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch m := msg.(type) {
		case *provider.UserMessage:
			result = append(result, convertUserMessage(m))

		case *provider.AssistantMessage:
			if m.StopReason.IsFailure() {
				continue
			}
			toolCalls := m.ToolCalls()
			if len(toolCalls) == 0 {
				result = append(result, openai.AssistantMessage(m.Text()))
				continue
			}
			oaiToolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(toolCalls))
			for i, tc := range toolCalls {
				args, err := json.Marshal(provider.CloneArguments(tc.Arguments))
				if err != nil {
					return nil, fmt.Errorf("encode arguments of tool call %q: %w", tc.ID, err)
				}
				oaiToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				}
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{ToolCalls: oaiToolCalls}
			if text := m.Text(); text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(text),
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})

		case *provider.ToolResultMessage:
			result = append(result, openai.ToolMessage(provider.JoinText(m.Content), m.ToolCallID))

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role())
		}
	}
	return result, nil
}

func convertUserMessage(m *provider.UserMessage) openai.ChatCompletionMessageParamUnion {
	hasImage := false
	for _, c := range m.Content {
		if _, ok := c.(provider.ImageContent); ok {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return openai.UserMessage(provider.JoinText(m.Content))
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Content))
	for _, c := range m.Content {
		switch b := c.(type) {
		case provider.TextContent:
			parts = append(parts, openai.TextContentPart(b.Text))
		case provider.ImageContent:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + b.MimeType + ";base64," + b.Data,
			}))
		}
	}
	return openai.UserMessage(parts)
}

// convertTools converts tool definitions to function tools.
func convertTools(tools []provider.Tool) []openai.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		}
	}
	return result
}
