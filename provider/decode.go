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
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrUnknownRole is returned when decoding a message with an unsupported
// role.
var ErrUnknownRole = errors.New("unknown message role")

// DecodeContent decodes a JSON array of tagged content blocks. A bare JSON
// string is accepted as a single text block.
func DecodeContent(data []byte) ([]ContentBlock, error) {
	parsed := gjson.ParseBytes(data)
	switch {
	case !parsed.Exists() || parsed.Type == gjson.Null:
		return []ContentBlock{}, nil
	case parsed.Type == gjson.String:
		return Text(parsed.String()), nil
	case !parsed.IsArray():
		return nil, fmt.Errorf("content must be an array or a string")
	}

	blocks := []ContentBlock{}
	var err error
	parsed.ForEach(func(_, item gjson.Result) bool {
		var b ContentBlock
		b, err = decodeBlock([]byte(item.Raw))
		if err != nil {
			return false
		}
		blocks = append(blocks, b)
		return true
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func decodeBlock(data []byte) (ContentBlock, error) {
	switch t := ContentType(gjson.GetBytes(data, "type").String()); t {
	case ContentTypeText:
		var c TextContent
		err := json.Unmarshal(data, &c)
		return c, err
	case ContentTypeThinking:
		var c ThinkingContent
		err := json.Unmarshal(data, &c)
		return c, err
	case ContentTypeToolCall:
		var c ToolCall
		err := json.Unmarshal(data, &c)
		return c, err
	case ContentTypeImage:
		var c ImageContent
		err := json.Unmarshal(data, &c)
		return c, err
	default:
		return nil, fmt.Errorf("unknown content type %q", t)
	}
}

// DecodeMessage decodes one message produced by the MarshalJSON methods of
// this package, dispatching on its role.
func DecodeMessage(data []byte) (Message, error) {
	role := Role(gjson.GetBytes(data, "role").String())
	content, err := DecodeContent([]byte(gjson.GetBytes(data, "content").Raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s message: %w", role, err)
	}

	switch role {
	case RoleUser:
		type alias UserMessage
		m := &UserMessage{}
		if err := unmarshalWithoutContent(data, (*alias)(m)); err != nil {
			return nil, err
		}
		m.Content = content
		return m, nil
	case RoleAssistant:
		type alias AssistantMessage
		m := &AssistantMessage{}
		if err := unmarshalWithoutContent(data, (*alias)(m)); err != nil {
			return nil, err
		}
		m.Content = content
		return m, nil
	case RoleToolResult:
		type alias ToolResultMessage
		m := &ToolResultMessage{}
		if err := unmarshalWithoutContent(data, (*alias)(m)); err != nil {
			return nil, err
		}
		m.Content = content
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// unmarshalWithoutContent decodes every field but content, whose blocks
// need type dispatch.
func unmarshalWithoutContent(data []byte, v any) error {
	stripped, err := sjson.DeleteBytes(data, "content")
	if err != nil {
		return err
	}
	return json.Unmarshal(stripped, v)
}
