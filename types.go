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

package polyagent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// RoleCustom is the role of application-defined transcript entries.
const RoleCustom provider.Role = "custom"

// AgentMessage is one transcript entry: a provider message (user,
// assistant, tool result) or a *CustomMessage.
type AgentMessage interface {
	Role() provider.Role
}

// CustomMessage carries application data in the transcript. It has no
// provider representation and must be handled by a ConvertFunc.
type CustomMessage struct {
	CustomRole string          `json:"customRole"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (*CustomMessage) Role() provider.Role { return RoleCustom }

func (m *CustomMessage) MarshalJSON() ([]byte, error) {
	type alias CustomMessage
	return json.Marshal(struct {
		Role provider.Role `json:"role"`
		*alias
	}{RoleCustom, (*alias)(m)})
}

// ConversionError is returned when a transcript entry cannot be turned
// into a provider message.
type ConversionError struct {
	Role string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert message with role %q to a provider message", e.Role)
}

// ConvertFunc turns the transcript into the messages sent to the provider.
type ConvertFunc func(messages []AgentMessage) ([]provider.Message, error)

// DefaultConvert passes provider messages through and fails on any custom
// message.
func DefaultConvert(messages []AgentMessage) ([]provider.Message, error) {
	out := make([]provider.Message, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *provider.UserMessage, *provider.AssistantMessage, *provider.ToolResultMessage:
			out = append(out, m)
		case *CustomMessage:
			return nil, &ConversionError{Role: msg.CustomRole}
		default:
			return nil, &ConversionError{Role: string(m.Role())}
		}
	}
	return out, nil
}

// DecodeMessages decodes a JSON array of transcript entries.
func DecodeMessages(data []byte) ([]AgentMessage, error) {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("messages must be a JSON array")
	}

	var (
		messages []AgentMessage
		err      error
	)
	parsed.ForEach(func(_, item gjson.Result) bool {
		var m AgentMessage
		m, err = decodeMessage([]byte(item.Raw))
		if err != nil {
			return false
		}
		messages = append(messages, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func decodeMessage(data []byte) (AgentMessage, error) {
	if provider.Role(gjson.GetBytes(data, "role").String()) == RoleCustom {
		m := &CustomMessage{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decode custom message: %w", err)
		}
		return m, nil
	}
	return provider.DecodeMessage(data)
}
