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
	"github.com/alexandrevilain/polyagent-go/eventstream"
)

// EventType represents a canonical assistant stream event type.
type EventType string

const (
	EventStart         EventType = "start"
	EventTextStart     EventType = "text_start"
	EventTextDelta     EventType = "text_delta"
	EventTextEnd       EventType = "text_end"
	EventThinkingStart EventType = "thinking_start"
	EventThinkingDelta EventType = "thinking_delta"
	EventThinkingEnd   EventType = "thinking_end"
	EventToolCallStart EventType = "toolcall_start"
	EventToolCallDelta EventType = "toolcall_delta"
	EventToolCallEnd   EventType = "toolcall_end"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// IsTerminal reports whether t ends a stream.
func (t EventType) IsTerminal() bool {
	return t == EventDone || t == EventError
}

// AssistantEvent is one canonical notification about an in-flight
// assistant message.
//
// Non-terminal events carry Partial, a snapshot of the message taken when
// the event was emitted. Terminal events carry Reason and the final
// Message instead.
type AssistantEvent struct {
	Type         EventType         `json:"type"`
	ContentIndex int               `json:"contentIndex"`
	Delta        string            `json:"delta,omitempty"`
	Content      string            `json:"content,omitempty"`
	ToolCall     *ToolCall         `json:"toolCall,omitempty"`
	Reason       StopReason        `json:"reason,omitempty"`
	Partial      *AssistantMessage `json:"partial,omitempty"`
	Message      *AssistantMessage `json:"message,omitempty"`
}

// NewStartEvent creates the event that opens every stream.
func NewStartEvent(msg *AssistantMessage) AssistantEvent {
	return AssistantEvent{Type: EventStart, Partial: msg.Clone()}
}

// NewBlockEvent creates a block start or delta event for content index.
func NewBlockEvent(t EventType, index int, delta string, msg *AssistantMessage) AssistantEvent {
	return AssistantEvent{
		Type:         t,
		ContentIndex: index,
		Delta:        delta,
		Partial:      msg.Clone(),
	}
}

// NewBlockEndEvent creates the *_end event for the block at index, filling
// Content or ToolCall from the block itself.
func NewBlockEndEvent(index int, msg *AssistantMessage) AssistantEvent {
	ev := AssistantEvent{ContentIndex: index, Partial: msg.Clone()}
	switch b := msg.Content[index].(type) {
	case TextContent:
		ev.Type = EventTextEnd
		ev.Content = b.Text
	case ThinkingContent:
		ev.Type = EventThinkingEnd
		ev.Content = b.Thinking
	case ToolCall:
		ev.Type = EventToolCallEnd
		ev.ToolCall = &b
	}
	return ev
}

// NewDoneEvent creates the successful terminal event.
func NewDoneEvent(msg *AssistantMessage) AssistantEvent {
	return AssistantEvent{Type: EventDone, Reason: msg.StopReason, Message: msg}
}

// NewErrorEvent creates the failed terminal event.
func NewErrorEvent(msg *AssistantMessage) AssistantEvent {
	return AssistantEvent{Type: EventError, Reason: msg.StopReason, Message: msg}
}

// AssistantStream carries the canonical events of one assistant turn and
// settles with the final message.
type AssistantStream = eventstream.Stream[AssistantEvent, *AssistantMessage]

// NewAssistantStream creates an open stream settled by done or error.
func NewAssistantStream() *AssistantStream {
	return eventstream.New[AssistantEvent, *AssistantMessage](func(ev AssistantEvent) (*AssistantMessage, bool) {
		return ev.Message, ev.Type.IsTerminal()
	})
}
