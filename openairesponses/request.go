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
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// RequestOptions tunes a Responses API request.
type RequestOptions struct {
	MaxOutputTokens int64
	// ReasoningEffort is one of minimal, low, medium or high.
	ReasoningEffort string
	Temperature     *float64
}

// BuildParams converts a canonical context into Responses API parameters.
// Requests are stateless: reasoning items travel back encrypted.
func BuildParams(model provider.Model, c provider.Context, opts RequestOptions) (responses.ResponseNewParams, error) {
	items, err := convertMessages(c.Messages)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model.ID),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
		Tools: convertTools(c.Tools),
		Store: openai.Bool(false),
	}
	if c.SystemPrompt != "" {
		params.Instructions = openai.String(c.SystemPrompt)
	}
	switch {
	case opts.MaxOutputTokens > 0:
		params.MaxOutputTokens = openai.Int(opts.MaxOutputTokens)
	case model.MaxTokens > 0:
		params.MaxOutputTokens = openai.Int(int64(model.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if model.Reasoning {
		params.Reasoning = shared.ReasoningParam{Summary: shared.ReasoningSummaryAuto}
		if opts.ReasoningEffort != "" {
			params.Reasoning.Effort = shared.ReasoningEffort(opts.ReasoningEffort)
		}
		params.Include = []responses.ResponseIncludable{responses.ResponseIncludableReasoningEncryptedContent}
	}
	return params, nil
}

func convertMessages(msgs []provider.Message) (responses.ResponseInputParam, error) {
	items := make(responses.ResponseInputParam, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *provider.UserMessage:
			content := convertUserContent(m.Content)
			if len(content) > 0 {
				items = append(items, responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser))
			}

		case *provider.AssistantMessage:
			if m.StopReason.IsFailure() {
				continue
			}
			items = append(items, convertAssistantContent(m.Content)...)

		case *provider.ToolResultMessage:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, provider.JoinText(m.Content)))

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role())
		}
	}
	return items, nil
}

func convertUserContent(content []provider.ContentBlock) responses.ResponseInputMessageContentListParam {
	parts := make(responses.ResponseInputMessageContentListParam, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text != "" {
				parts = append(parts, responses.ResponseInputContentUnionParam{
					OfInputText: &responses.ResponseInputTextParam{Text: b.Text},
				})
			}
		case provider.ImageContent:
			parts = append(parts, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					Detail:   responses.ResponseInputImageDetailAuto,
					ImageURL: openai.String("data:" + b.MimeType + ";base64," + b.Data),
				},
			})
		}
	}
	return parts
}

func convertAssistantContent(content []provider.ContentBlock) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(content))
	for _, c := range content {
		switch b := c.(type) {
		case provider.TextContent:
			if b.Text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(b.Text, responses.EasyInputMessageRoleAssistant))
			}
		case provider.ThinkingContent:
			if item, ok := reasoningItem(b.Signature); ok {
				items = append(items, item)
			}
		case provider.ToolCall:
			args, err := json.Marshal(provider.CloneArguments(b.Arguments))
			if err != nil {
				args = []byte("{}")
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(args), b.ID, b.Name))
		}
	}
	return items
}

// reasoningItem rebuilds a reasoning input item from the raw output item
// stored as the thinking signature.
func reasoningItem(raw string) (responses.ResponseInputItemUnionParam, bool) {
	if raw == "" || !gjson.Valid(raw) {
		return responses.ResponseInputItemUnionParam{}, false
	}
	parsed := gjson.Parse(raw)
	if parsed.Get("type").String() != "reasoning" {
		return responses.ResponseInputItemUnionParam{}, false
	}

	var summary []responses.ResponseReasoningItemSummaryParam
	for _, s := range parsed.Get("summary").Array() {
		summary = append(summary, responses.ResponseReasoningItemSummaryParam{Text: s.Get("text").String()})
	}
	item := responses.ResponseInputItemParamOfReasoning(parsed.Get("id").String(), summary)
	if enc := parsed.Get("encrypted_content"); enc.Exists() && enc.String() != "" {
		item.OfReasoning.EncryptedContent = openai.String(enc.String())
	}
	return item, true
}

func convertTools(tools []provider.Tool) []responses.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]responses.ToolUnionParam, len(tools))
	for i, t := range tools {
		result[i] = responses.ToolParamOfFunction(t.Name, t.Parameters, false)
		if t.Description != "" {
			result[i].OfFunction.Description = openai.String(t.Description)
		}
	}
	return result
}
