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
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// RequestOptions tunes a GenerateContent request.
type RequestOptions struct {
	MaxTokens      int32
	ThinkingBudget int32
	Temperature    *float32
}

// BuildRequest converts a canonical context into GenerateContent contents
// and configuration.
func BuildRequest(model provider.Model, c provider.Context, opts RequestOptions) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, err := convertMessages(c.Messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{
		Tools:       convertTools(c.Tools),
		Temperature: opts.Temperature,
	}
	if c.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(c.SystemPrompt, genai.RoleUser)
	}
	switch {
	case opts.MaxTokens > 0:
		config.MaxOutputTokens = opts.MaxTokens
	case model.MaxTokens > 0:
		config.MaxOutputTokens = int32(model.MaxTokens)
	}
	if model.Reasoning {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
		if opts.ThinkingBudget > 0 {
			budget := opts.ThinkingBudget
			config.ThinkingConfig.ThinkingBudget = &budget
		}
	}
	return contents, config, nil
}

// RequestBody renders the REST payload for streamGenerateContent.
func RequestBody(contents []*genai.Content, config *genai.GenerateContentConfig) ([]byte, error) {
	body := map[string]any{"contents": contents}
	if config != nil {
		if config.SystemInstruction != nil {
			body["systemInstruction"] = config.SystemInstruction
		}
		if len(config.Tools) > 0 {
			body["tools"] = config.Tools
		}
		generation := map[string]any{}
		if config.MaxOutputTokens > 0 {
			generation["maxOutputTokens"] = config.MaxOutputTokens
		}
		if config.Temperature != nil {
			generation["temperature"] = *config.Temperature
		}
		if config.ThinkingConfig != nil {
			generation["thinkingConfig"] = config.ThinkingConfig
		}
		if len(generation) > 0 {
			body["generationConfig"] = generation
		}
	}
	return json.Marshal(body)
}

func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	result := make([]*genai.Content, 0, len(msgs))
	lastWasToolResult := false

	for _, msg := range msgs {
		switch m := msg.(type) {
		case *provider.UserMessage:
			lastWasToolResult = false
			parts := convertUserContent(m.Content)
			if len(parts) > 0 {
				result = append(result, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}

		case *provider.AssistantMessage:
			lastWasToolResult = false
			if m.StopReason.IsFailure() {
				continue
			}
			parts := convertAssistantContent(m.Content)
			if len(parts) > 0 {
				result = append(result, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}

		case *provider.ToolResultMessage:
			response := map[string]any{"output": provider.JoinText(m.Content)}
			if m.IsError {
				response = map[string]any{"error": provider.JoinText(m.Content)}
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.ToolName,
				Response: response,
			}}
			if lastWasToolResult {
				last := result[len(result)-1]
				last.Parts = append(last.Parts, part)
			} else {
				result = append(result, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
			}
			lastWasToolResult = true

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role())
		}
	}
	return result, nil
}

func convertUserContent(content []provider.ContentBlock) []*genai.Part {
	parts := make([]*genai.Part, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text != "" {
				parts = append(parts, genai.NewPartFromText(b.Text))
			}
		case provider.ImageContent:
			data, err := base64.StdEncoding.DecodeString(b.Data)
			if err != nil {
				continue
			}
			parts = append(parts, genai.NewPartFromBytes(data, b.MimeType))
		}
	}
	return parts
}

func convertAssistantContent(content []provider.ContentBlock) []*genai.Part {
	parts := make([]*genai.Part, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text == "" {
				continue
			}
			parts = append(parts, &genai.Part{Text: b.Text, ThoughtSignature: decodeSignature(b.Signature)})
		case provider.ThinkingContent:
			if b.Thinking == "" {
				continue
			}
			parts = append(parts, &genai.Part{Text: b.Thinking, Thought: true, ThoughtSignature: decodeSignature(b.Signature)})
		case provider.ToolCall:
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   b.ID,
					Name: b.Name,
					Args: provider.CloneArguments(b.Arguments),
				},
				ThoughtSignature: decodeSignature(b.ThoughtSignature),
			})
		}
	}
	return parts
}

func convertTools(tools []provider.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
