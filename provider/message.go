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
	"slices"
	"time"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "toolResult"
)

// Message is a provider-facing conversation entry.
type Message interface {
	Role() Role
}

type UserMessage struct {
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

func (*UserMessage) Role() Role { return RoleUser }

func (m *UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		*alias
	}{RoleUser, (*alias)(m)})
}

// NewUserMessage returns a user message holding text.
func NewUserMessage(text string) *UserMessage {
	return &UserMessage{Content: Text(text), Timestamp: time.Now()}
}

type ToolResultMessage struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Content    []ContentBlock  `json:"content"`
	Details    json.RawMessage `json:"details,omitempty"`
	IsError    bool            `json:"isError"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (*ToolResultMessage) Role() Role { return RoleToolResult }

func (m *ToolResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolResultMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		*alias
	}{RoleToolResult, (*alias)(m)})
}

// StopReason classifies why an assistant turn ended.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonLength  StopReason = "length"
	StopReasonToolUse StopReason = "toolUse"
	StopReasonError   StopReason = "error"
	StopReasonAborted StopReason = "aborted"
)

// IsFailure reports whether r marks the message as failed.
func (r StopReason) IsFailure() bool {
	return r == StopReasonError || r == StopReasonAborted
}

// Cost is a monetary breakdown in the model's pricing currency.
type Cost struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cacheRead"`
	CacheWrite float64 `json:"cacheWrite"`
	Total      float64 `json:"total"`
}

type Usage struct {
	Input       int  `json:"input"`
	Output      int  `json:"output"`
	CacheRead   int  `json:"cacheRead"`
	CacheWrite  int  `json:"cacheWrite"`
	TotalTokens int  `json:"totalTokens"`
	Cost        Cost `json:"cost"`
}

// RecomputeTotal sets TotalTokens to the sum of the four counters.
func (u *Usage) RecomputeTotal() {
	u.TotalTokens = u.Input + u.Output + u.CacheRead + u.CacheWrite
}

// AssistantMessage is the output of one model turn. It is mutated by an
// adapter while its stream is open and must be treated as immutable once
// the stream has emitted done or error.
type AssistantMessage struct {
	Content      []ContentBlock `json:"content"`
	API          API            `json:"api"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Usage        Usage          `json:"usage"`
	StopReason   StopReason     `json:"stopReason"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

func (*AssistantMessage) Role() Role { return RoleAssistant }

func (m *AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		*alias
	}{RoleAssistant, (*alias)(m)})
}

// NewAssistantMessage returns an empty message for model.
func NewAssistantMessage(model Model) *AssistantMessage {
	return &AssistantMessage{
		Content:   []ContentBlock{},
		API:       model.API,
		Provider:  model.Provider,
		Model:     model.ID,
		Timestamp: time.Now(),
	}
}

// Clone returns a copy whose content slice can be mutated independently.
func (m *AssistantMessage) Clone() *AssistantMessage {
	c := *m
	c.Content = slices.Clone(m.Content)
	if c.Content == nil {
		c.Content = []ContentBlock{}
	}
	return &c
}

// ToolCalls returns the tool-call blocks in content order.
func (m *AssistantMessage) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if tc, ok := b.(ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text returns the concatenated visible text.
func (m *AssistantMessage) Text() string {
	return JoinText(m.Content)
}

// Tool describes a function the model may call. Parameters is a JSON
// Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Context is everything sent to a model for one turn.
type Context struct {
	SystemPrompt string
	Messages     []Message
	Tools        []Tool
}
