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
	"time"

	"github.com/alexandrevilain/polyagent-go/eventstream"
	"github.com/alexandrevilain/polyagent-go/provider"
)

// EventType represents an agent event type.
type EventType string

const (
	EventTypeAgentStart          EventType = "agent_start"
	EventTypeAgentEnd            EventType = "agent_end"
	EventTypeTurnStart           EventType = "turn_start"
	EventTypeTurnEnd             EventType = "turn_end"
	EventTypeMessageStart        EventType = "message_start"
	EventTypeMessageUpdate       EventType = "message_update"
	EventTypeMessageEnd          EventType = "message_end"
	EventTypeToolExecutionStart  EventType = "tool_execution_start"
	EventTypeToolExecutionUpdate EventType = "tool_execution_update"
	EventTypeToolExecutionEnd    EventType = "tool_execution_end"
)

// Event is the interface that all agent events implement.
type Event interface {
	EventType() EventType
}

// AgentStartEvent signals the start of a run.
type AgentStartEvent struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"runId"`
	Timestamp int64     `json:"timestamp"`
}

func (e AgentStartEvent) EventType() EventType { return e.Type }

// AgentEndEvent is the last event of a run. Messages holds every entry the
// run appended to the transcript. Error is set when the run failed.
type AgentEndEvent struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"runId"`
	Messages  []AgentMessage `json:"messages"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func (e AgentEndEvent) EventType() EventType { return e.Type }

// TurnStartEvent signals the start of one assistant turn.
type TurnStartEvent struct {
	Type      EventType `json:"type"`
	Turn      int       `json:"turn"`
	Timestamp int64     `json:"timestamp"`
}

func (e TurnStartEvent) EventType() EventType { return e.Type }

// TurnEndEvent closes a turn with its assistant message and tool results.
type TurnEndEvent struct {
	Type        EventType                     `json:"type"`
	Turn        int                           `json:"turn"`
	Message     *provider.AssistantMessage    `json:"message"`
	ToolResults []*provider.ToolResultMessage `json:"toolResults"`
	Timestamp   int64                         `json:"timestamp"`
}

func (e TurnEndEvent) EventType() EventType { return e.Type }

// MessageStartEvent signals a message entering the transcript.
type MessageStartEvent struct {
	Type      EventType    `json:"type"`
	Message   AgentMessage `json:"message"`
	Timestamp int64        `json:"timestamp"`
}

func (e MessageStartEvent) EventType() EventType { return e.Type }

// MessageUpdateEvent relays one streaming event of the assistant message.
type MessageUpdateEvent struct {
	Type           EventType                  `json:"type"`
	Message        *provider.AssistantMessage `json:"message"`
	AssistantEvent provider.AssistantEvent    `json:"assistantEvent"`
	Timestamp      int64                      `json:"timestamp"`
}

func (e MessageUpdateEvent) EventType() EventType { return e.Type }

// MessageEndEvent carries the final version of a message.
type MessageEndEvent struct {
	Type      EventType    `json:"type"`
	Message   AgentMessage `json:"message"`
	Timestamp int64        `json:"timestamp"`
}

func (e MessageEndEvent) EventType() EventType { return e.Type }

// ToolExecutionStartEvent signals that a tool call is being handled.
type ToolExecutionStartEvent struct {
	Type       EventType      `json:"type"`
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Timestamp  int64          `json:"timestamp"`
}

func (e ToolExecutionStartEvent) EventType() EventType { return e.Type }

// ToolExecutionUpdateEvent carries progress reported by a tool.
type ToolExecutionUpdateEvent struct {
	Type       EventType      `json:"type"`
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Partial    ToolResult     `json:"partialResult"`
	Timestamp  int64          `json:"timestamp"`
}

func (e ToolExecutionUpdateEvent) EventType() EventType { return e.Type }

// ToolExecutionEndEvent carries the result of a tool call.
type ToolExecutionEndEvent struct {
	Type       EventType  `json:"type"`
	ToolCallID string     `json:"toolCallId"`
	ToolName   string     `json:"toolName"`
	Result     ToolResult `json:"result"`
	IsError    bool       `json:"isError"`
	Timestamp  int64      `json:"timestamp"`
}

func (e ToolExecutionEndEvent) EventType() EventType { return e.Type }

// AgentStream delivers the events of one run and settles with the
// messages the run produced.
type AgentStream = eventstream.Stream[Event, []AgentMessage]

func newAgentStream() *AgentStream {
	return eventstream.New[Event, []AgentMessage](func(ev Event) ([]AgentMessage, bool) {
		end, ok := ev.(AgentEndEvent)
		return end.Messages, ok
	})
}

// now returns the current time in Unix milliseconds.
func now() int64 {
	return time.Now().UnixMilli()
}

// NewAgentStartEvent creates a new AgentStartEvent.
func NewAgentStartEvent(runID string) AgentStartEvent {
	return AgentStartEvent{Type: EventTypeAgentStart, RunID: runID, Timestamp: now()}
}

// NewAgentEndEvent creates a new AgentEndEvent.
func NewAgentEndEvent(runID string, messages []AgentMessage, errMessage string) AgentEndEvent {
	return AgentEndEvent{
		Type:      EventTypeAgentEnd,
		RunID:     runID,
		Messages:  messages,
		Error:     errMessage,
		Timestamp: now(),
	}
}

// NewTurnStartEvent creates a new TurnStartEvent.
func NewTurnStartEvent(turn int) TurnStartEvent {
	return TurnStartEvent{Type: EventTypeTurnStart, Turn: turn, Timestamp: now()}
}

// NewTurnEndEvent creates a new TurnEndEvent.
func NewTurnEndEvent(turn int, msg *provider.AssistantMessage, results []*provider.ToolResultMessage) TurnEndEvent {
	return TurnEndEvent{
		Type:        EventTypeTurnEnd,
		Turn:        turn,
		Message:     msg,
		ToolResults: results,
		Timestamp:   now(),
	}
}

// NewMessageStartEvent creates a new MessageStartEvent.
func NewMessageStartEvent(msg AgentMessage) MessageStartEvent {
	return MessageStartEvent{Type: EventTypeMessageStart, Message: msg, Timestamp: now()}
}

// NewMessageUpdateEvent creates a new MessageUpdateEvent.
func NewMessageUpdateEvent(msg *provider.AssistantMessage, ev provider.AssistantEvent) MessageUpdateEvent {
	return MessageUpdateEvent{
		Type:           EventTypeMessageUpdate,
		Message:        msg,
		AssistantEvent: ev,
		Timestamp:      now(),
	}
}

// NewMessageEndEvent creates a new MessageEndEvent.
func NewMessageEndEvent(msg AgentMessage) MessageEndEvent {
	return MessageEndEvent{Type: EventTypeMessageEnd, Message: msg, Timestamp: now()}
}

// NewToolExecutionStartEvent creates a new ToolExecutionStartEvent.
func NewToolExecutionStartEvent(call provider.ToolCall) ToolExecutionStartEvent {
	return ToolExecutionStartEvent{
		Type:       EventTypeToolExecutionStart,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Args:       call.Arguments,
		Timestamp:  now(),
	}
}

// NewToolExecutionUpdateEvent creates a new ToolExecutionUpdateEvent.
func NewToolExecutionUpdateEvent(call provider.ToolCall, partial ToolResult) ToolExecutionUpdateEvent {
	return ToolExecutionUpdateEvent{
		Type:       EventTypeToolExecutionUpdate,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Args:       call.Arguments,
		Partial:    partial,
		Timestamp:  now(),
	}
}

// NewToolExecutionEndEvent creates a new ToolExecutionEndEvent.
func NewToolExecutionEndEvent(call provider.ToolCall, result ToolResult, isError bool) ToolExecutionEndEvent {
	return ToolExecutionEndEvent{
		Type:       EventTypeToolExecutionEnd,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Result:     result,
		IsError:    isError,
		Timestamp:  now(),
	}
}
