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
	"maps"
	"strings"
)

// ContentType tags the variant of a ContentBlock on the wire.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeThinking ContentType = "thinking"
	ContentTypeToolCall ContentType = "toolCall"
	ContentTypeImage    ContentType = "image"
)

// ContentBlock is one unit of message content. The set of implementations
// is closed: TextContent, ThinkingContent, ToolCall and ImageContent.
type ContentBlock interface {
	ContentType() ContentType
	isContentBlock()
}

// TextContent is visible model or user text.
type TextContent struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

func (TextContent) ContentType() ContentType { return ContentTypeText }
func (TextContent) isContentBlock()          {}

func (c TextContent) MarshalJSON() ([]byte, error) {
	type alias TextContent
	return marshalTagged(ContentTypeText, alias(c))
}

// ThinkingContent is model reasoning. Signature is an opaque provider token
// that must be replayed verbatim.
type ThinkingContent struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

func (ThinkingContent) ContentType() ContentType { return ContentTypeThinking }
func (ThinkingContent) isContentBlock()          {}

func (c ThinkingContent) MarshalJSON() ([]byte, error) {
	type alias ThinkingContent
	return marshalTagged(ContentTypeThinking, alias(c))
}

// ToolCall is a request from the model to run a tool.
type ToolCall struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Arguments        map[string]any `json:"arguments"`
	ThoughtSignature string         `json:"thoughtSignature,omitempty"`
}

func (ToolCall) ContentType() ContentType { return ContentTypeToolCall }
func (ToolCall) isContentBlock()          {}

func (c ToolCall) MarshalJSON() ([]byte, error) {
	type alias ToolCall
	if c.Arguments == nil {
		c.Arguments = map[string]any{}
	}
	return marshalTagged(ContentTypeToolCall, alias(c))
}

// ImageContent is base64 image data attached to user input or tool output.
type ImageContent struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (ImageContent) ContentType() ContentType { return ContentTypeImage }
func (ImageContent) isContentBlock()          {}

func (c ImageContent) MarshalJSON() ([]byte, error) {
	type alias ImageContent
	return marshalTagged(ContentTypeImage, alias(c))
}

func marshalTagged(t ContentType, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(t)
	fields["type"] = tag
	return json.Marshal(fields)
}

// CloneArguments returns a shallow copy of args, never nil.
func CloneArguments(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return maps.Clone(args)
}

// JoinText concatenates every TextContent in blocks.
func JoinText(blocks []ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if t, ok := b.(TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// Text is a convenience constructor for a single text block slice.
func Text(s string) []ContentBlock {
	return []ContentBlock{TextContent{Text: s}}
}
