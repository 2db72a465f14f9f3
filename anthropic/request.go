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
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/alexandrevilain/polyagent-go/provider"
)

const defaultMaxTokens = 4096

// RequestOptions tunes a Messages API request.
type RequestOptions struct {
	MaxTokens      int64
	ThinkingBudget int64
	Temperature    *float64
	OAuthNames     bool
}

// BuildParams converts a canonical context into Messages API parameters.
func BuildParams(model provider.Model, c provider.Context, opts RequestOptions) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(c.Messages, opts.OAuthNames)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.ID),
		MaxTokens: maxTokens(model, opts),
		Messages:  messages,
		Tools:     convertTools(c.Tools, opts.OAuthNames),
	}
	if c.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.SystemPrompt}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if model.Reasoning && opts.ThinkingBudget > 0 && opts.ThinkingBudget < params.MaxTokens {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(opts.ThinkingBudget)
	}
	return params, nil
}

func maxTokens(model provider.Model, opts RequestOptions) int64 {
	switch {
	case opts.MaxTokens > 0:
		return opts.MaxTokens
	case model.MaxTokens > 0:
		return int64(model.MaxTokens)
	default:
		return defaultMaxTokens
	}
}

// convertMessages converts canonical messages to Messages API format.
// Consecutive tool results are merged into a single user turn.
func convertMessages(msgs []provider.Message, oauthNames bool) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	lastWasToolResult := false

	for _, msg := range msgs {
		switch m := msg.(type) {
		case *provider.UserMessage:
			lastWasToolResult = false
			blocks := convertUserContent(m.Content)
			if len(blocks) > 0 {
				result = append(result, anthropic.NewUserMessage(blocks...))
			}

		case *provider.AssistantMessage:
			lastWasToolResult = false
			if m.StopReason.IsFailure() {
				continue
			}
			blocks := convertAssistantContent(m.Content, oauthNames)
			if len(blocks) > 0 {
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			}

		case *provider.ToolResultMessage:
			block := anthropic.NewToolResultBlock(m.ToolCallID, provider.JoinText(m.Content), m.IsError)
			if lastWasToolResult {
				last := &result[len(result)-1]
				last.Content = append(last.Content, block)
			} else {
				result = append(result, anthropic.NewUserMessage(block))
			}
			lastWasToolResult = true

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role())
		}
	}
	return result, nil
}

func convertUserContent(content []provider.ContentBlock) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			}
		case provider.ImageContent:
			blocks = append(blocks, anthropic.NewImageBlockBase64(b.MimeType, b.Data))
		}
	}
	return blocks
}

func convertAssistantContent(content []provider.ContentBlock, oauthNames bool) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			}
		case provider.ThinkingContent:
			switch {
			case b.Thinking == redactedThinking && b.Signature != "":
				blocks = append(blocks, anthropic.NewRedactedThinkingBlock(b.Signature))
			case b.Signature != "":
				blocks = append(blocks, anthropic.NewThinkingBlock(b.Signature, b.Thinking))
			case b.Thinking != "":
				// Unsigned reasoning cannot be replayed as thinking.
				blocks = append(blocks, anthropic.NewTextBlock(b.Thinking))
			}
		case provider.ToolCall:
			name := b.Name
			if oauthNames {
				name = ToWireName(name)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, provider.CloneArguments(b.Arguments), name))
		}
	}
	return blocks
}

func convertTools(tools []provider.Tool, oauthNames bool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		name := t.Name
		if oauthNames {
			name = ToWireName(name)
		}
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: t.Parameters["properties"],
					Required:   requiredList(t.Parameters["required"]),
				},
			},
		}
	}
	return result
}

func requiredList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
