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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/alexandrevilain/polyagent-go/provider"
)

var testModel = provider.Model{
	ID:       "test-model",
	API:      provider.APIAnthropicMessages,
	Provider: "test",
}

// sequentialIDGenerator returns a deterministic ID generator for testing.
func sequentialIDGenerator() IDGenerator {
	var mu sync.Mutex
	counters := map[string]int{}
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		counters[prefix]++
		return fmt.Sprintf("%s-%d", prefix, counters[prefix])
	}
}

func quietLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAgent(p Provider, opts ...Option) *Agent {
	base := []Option{
		WithModel(testModel),
		WithIDGenerator(sequentialIDGenerator()),
		WithLogger(quietLogger()),
	}
	return NewAgent(p, append(base, opts...)...)
}

// assistantTurn returns a settled stream replaying blocks as one turn.
func assistantTurn(stop provider.StopReason, blocks ...provider.ContentBlock) *provider.AssistantStream {
	out := provider.NewAssistantStream()
	msg := provider.NewAssistantMessage(testModel)
	out.Push(provider.NewStartEvent(msg))

	for i, b := range blocks {
		msg.Content = append(msg.Content, b)
		startType := provider.EventTextStart
		switch b.(type) {
		case provider.ThinkingContent:
			startType = provider.EventThinkingStart
		case provider.ToolCall:
			startType = provider.EventToolCallStart
		}
		out.Push(provider.NewBlockEvent(startType, i, "", msg))
		out.Push(provider.NewBlockEndEvent(i, msg))
	}

	msg.StopReason = stop
	msg.Usage = provider.Usage{Input: 10, Output: 5, TotalTokens: 15}
	if stop.IsFailure() {
		msg.ErrorMessage = "upstream exploded"
		out.Push(provider.NewErrorEvent(msg.Clone()))
	} else {
		out.Push(provider.NewDoneEvent(msg.Clone()))
	}
	return out
}

func toolCall(id string, args map[string]any) provider.ToolCall {
	return provider.ToolCall{ID: id, Name: "echo", Arguments: args}
}

func collect(g *WithT, s *AgentStream) ([]Event, []AgentMessage) {
	var events []Event
	for ev := range s.Events(context.Background()) {
		events = append(events, ev)
	}
	messages, err := s.Result(context.Background())
	g.Expect(err).ToNot(HaveOccurred())
	return events, messages
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.EventType()
	}
	return types
}

func lastEnd(events []Event) AgentEndEvent {
	return events[len(events)-1].(AgentEndEvent)
}

// echoTool counts its executions and returns its text argument.
func echoTool(calls *atomic.Int32) Tool {
	return Tool{
		Name:        "echo",
		Label:       "Echo",
		Description: "Echo text back",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
		Execute: func(_ context.Context, _ string, args map[string]any, onUpdate ToolUpdateFunc) (ToolResult, error) {
			calls.Add(1)
			onUpdate(TextResult("working"))
			return TextResult(args["text"].(string)), nil
		},
	}
}

func TestAgent_Run_SimpleTextResponse(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().
		Stream(mock.Anything, testModel, mock.MatchedBy(func(c provider.Context) bool {
			return c.SystemPrompt == "Be brief." && len(c.Messages) == 1
		})).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "Hello world"})).
		Once()

	agent := newTestAgent(p, WithSystemPrompt("Be brief."))
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("hi")}, nil))

	g.Expect(eventTypes(events)).To(Equal([]EventType{
		EventTypeAgentStart,
		EventTypeTurnStart,
		EventTypeMessageStart, EventTypeMessageEnd,
		EventTypeMessageStart,
		EventTypeMessageUpdate, EventTypeMessageUpdate, EventTypeMessageUpdate,
		EventTypeMessageEnd,
		EventTypeTurnEnd,
		EventTypeAgentEnd,
	}))

	g.Expect(events[0].(AgentStartEvent).RunID).To(Equal("run-1"))
	g.Expect(events[5].(MessageUpdateEvent).AssistantEvent.Type).To(Equal(provider.EventTextStart))
	g.Expect(events[7].(MessageUpdateEvent).AssistantEvent.Type).To(Equal(provider.EventDone))

	end := lastEnd(events)
	g.Expect(end.RunID).To(Equal("run-1"))
	g.Expect(end.Error).To(BeEmpty())

	g.Expect(messages).To(HaveLen(2))
	g.Expect(messages[0].Role()).To(Equal(provider.RoleUser))
	final := messages[1].(*provider.AssistantMessage)
	g.Expect(final.Text()).To(Equal("Hello world"))
	g.Expect(final.StopReason).To(Equal(provider.StopReasonStop))
	g.Expect(events[8].(MessageEndEvent).Message).To(BeIdenticalTo(final))
}

func TestAgent_Run_SteeringSkipsRemainingToolCalls(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var contexts []provider.Context
	p := NewMockProvider(t)
	p.EXPECT().
		Stream(mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ context.Context, _ provider.Model, c provider.Context) { contexts = append(contexts, c) }).
		Return(assistantTurn(provider.StopReasonToolUse,
			toolCall("call_1", map[string]any{"text": "one"}),
			toolCall("call_2", map[string]any{"text": "two"}),
		)).
		Once()
	p.EXPECT().
		Stream(mock.Anything, mock.Anything, mock.Anything).
		Run(func(_ context.Context, _ provider.Model, c provider.Context) { contexts = append(contexts, c) }).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "ok, doing X"})).
		Once()

	var executions atomic.Int32
	var steered atomic.Bool
	steering := func(context.Context) []AgentMessage {
		if steered.CompareAndSwap(false, true) {
			return []AgentMessage{provider.NewUserMessage("stop, do X instead")}
		}
		return nil
	}
	var followUps atomic.Int32
	followUp := func(context.Context) []AgentMessage {
		followUps.Add(1)
		return nil
	}

	agent := newTestAgent(p, WithTools(echoTool(&executions)), WithSteering(steering), WithFollowUp(followUp))
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("echo twice")}, nil))

	g.Expect(executions.Load()).To(Equal(int32(1)))
	g.Expect(followUps.Load()).To(Equal(int32(1)))
	g.Expect(lastEnd(events).Error).To(BeEmpty())

	var ends []ToolExecutionEndEvent
	var starts, updates int
	for _, ev := range events {
		switch e := ev.(type) {
		case ToolExecutionStartEvent:
			starts++
		case ToolExecutionUpdateEvent:
			updates++
		case ToolExecutionEndEvent:
			ends = append(ends, e)
		}
	}
	g.Expect(starts).To(Equal(2))
	g.Expect(updates).To(Equal(1))
	g.Expect(ends).To(HaveLen(2))
	g.Expect(ends[0].ToolCallID).To(Equal("call_1"))
	g.Expect(ends[0].IsError).To(BeFalse())
	g.Expect(ends[1].ToolCallID).To(Equal("call_2"))
	g.Expect(ends[1].IsError).To(BeTrue())
	g.Expect(ends[1].Result.Content).To(Equal(provider.Text("Skipped due to queued user message.")))

	// prompt, assistant, two results, steering message, final assistant
	g.Expect(messages).To(HaveLen(6))
	skipped := messages[3].(*provider.ToolResultMessage)
	g.Expect(skipped.ToolCallID).To(Equal("call_2"))
	g.Expect(skipped.IsError).To(BeTrue())

	g.Expect(contexts).To(HaveLen(2))
	second := contexts[1].Messages
	g.Expect(second).To(HaveLen(5))
	g.Expect(second[2].(*provider.ToolResultMessage).Content).To(Equal(provider.Text("one")))
	g.Expect(second[4].(*provider.UserMessage).Content).To(Equal(provider.Text("stop, do X instead")))
	g.Expect(contexts[0].Tools).To(Equal([]provider.Tool{echoTool(&executions).Definition()}))
}

func TestAgent_Run_FollowUp(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "first"})).Once()
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "second"})).Once()

	queue := []AgentMessage{provider.NewUserMessage("and then?")}
	var mu sync.Mutex
	followUp := func(context.Context) []AgentMessage {
		mu.Lock()
		defer mu.Unlock()
		next := queue
		queue = nil
		return next
	}

	var turns []int
	hooks := Hooks{
		OnTurnEnd: func(_ context.Context, turn TurnResult) error {
			turns = append(turns, turn.Turn)
			return nil
		},
	}

	var result RunResult
	hooks.OnFinish = func(_ context.Context, r RunResult) error {
		result = r
		return nil
	}

	agent := newTestAgent(p, WithFollowUp(followUp), WithHooks(hooks))
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))

	g.Expect(lastEnd(events).Error).To(BeEmpty())
	g.Expect(turns).To(Equal([]int{1, 2}))
	g.Expect(messages).To(HaveLen(4))
	g.Expect(messages[2].(*provider.UserMessage).Content).To(Equal(provider.Text("and then?")))
	g.Expect(messages[3].(*provider.AssistantMessage).Text()).To(Equal("second"))

	g.Expect(result.RunID).To(Equal("run-1"))
	g.Expect(result.StopReason).To(Equal(provider.StopReasonStop))
	g.Expect(result.Usage.TotalTokens).To(Equal(30))
	g.Expect(result.Messages).To(Equal(messages))
}

func TestAgent_Run_ProviderErrorEndsRun(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonError, toolCall("call_1", map[string]any{"text": "x"}))).Once()

	var executions atomic.Int32
	var hookErr error
	agent := newTestAgent(p,
		WithTools(echoTool(&executions)),
		WithHooks(Hooks{OnError: func(_ context.Context, err error) { hookErr = err }}),
	)
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))

	g.Expect(executions.Load()).To(BeZero())
	g.Expect(lastEnd(events).Error).To(Equal("upstream exploded"))
	g.Expect(hookErr).To(MatchError("upstream exploded"))
	g.Expect(events[len(events)-2].(TurnEndEvent).ToolResults).To(BeEmpty())
	g.Expect(messages[1].(*provider.AssistantMessage).StopReason).To(Equal(provider.StopReasonError))
}

func TestAgent_Run_ConversionFailure(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	agent := newTestAgent(p)

	transcript := []AgentMessage{&CustomMessage{CustomRole: "note", Payload: []byte(`{"pinned":true}`)}}
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, transcript))

	g.Expect(lastEnd(events).Error).To(Equal(`cannot convert message with role "note" to a provider message`))
	g.Expect(messages).To(HaveLen(2))
	failed := messages[1].(*provider.AssistantMessage)
	g.Expect(failed.StopReason).To(Equal(provider.StopReasonError))
	g.Expect(failed.Content).To(BeEmpty())
	p.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything, mock.Anything)
}

func TestAgent_Run_CustomConverter(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().
		Stream(mock.Anything, mock.Anything, mock.MatchedBy(func(c provider.Context) bool {
			return len(c.Messages) == 1
		})).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "ok"})).
		Once()

	dropCustom := func(messages []AgentMessage) ([]provider.Message, error) {
		var out []provider.Message
		for _, m := range messages {
			if _, ok := m.(*CustomMessage); !ok {
				out = append(out, m)
			}
		}
		return out, nil
	}

	agent := newTestAgent(p, WithConverter(dropCustom))
	transcript := []AgentMessage{&CustomMessage{CustomRole: "note"}}
	events, _ := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, transcript))
	g.Expect(lastEnd(events).Error).To(BeEmpty())
}

func TestAgent_ValidationErrorsBecomeToolResults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonToolUse,
			toolCall("call_1", map[string]any{}),
			provider.ToolCall{ID: "call_2", Name: "missing", Arguments: map[string]any{}},
		)).Once()
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "sorry"})).Once()

	var executions atomic.Int32
	agent := newTestAgent(p, WithTools(echoTool(&executions)))
	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))

	g.Expect(executions.Load()).To(BeZero())
	g.Expect(lastEnd(events).Error).To(BeEmpty())

	invalid := messages[2].(*provider.ToolResultMessage)
	g.Expect(invalid.IsError).To(BeTrue())
	g.Expect(provider.JoinText(invalid.Content)).To(HavePrefix(`validation failed for tool "echo"`))

	missing := messages[3].(*provider.ToolResultMessage)
	g.Expect(missing.IsError).To(BeTrue())
	g.Expect(provider.JoinText(missing.Content)).To(Equal(`tool "missing" not found`))
}

func TestAgent_ToolExecutionError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonToolUse, provider.ToolCall{ID: "call_1", Name: "fail", Arguments: map[string]any{}})).Once()
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "done"})).Once()

	failing := Tool{
		Name: "fail",
		Execute: func(context.Context, string, map[string]any, ToolUpdateFunc) (ToolResult, error) {
			return ToolResult{}, errors.New("disk full")
		},
	}

	agent := newTestAgent(p, WithTools(failing))
	_, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))

	result := messages[2].(*provider.ToolResultMessage)
	g.Expect(result.IsError).To(BeTrue())
	g.Expect(result.Content).To(Equal(provider.Text("disk full")))
}

func TestAgent_MaxTurns(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, provider.Model, provider.Context) *provider.AssistantStream {
			return assistantTurn(provider.StopReasonToolUse, toolCall("call_1", map[string]any{"text": "again"}))
		}).
		Times(2)

	var executions atomic.Int32
	agent := newTestAgent(p, WithTools(echoTool(&executions)), WithStrategy(MaxTurns(2)))
	events, _ := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("loop")}, nil))

	g.Expect(executions.Load()).To(Equal(int32(2)))
	g.Expect(lastEnd(events).Error).To(BeEmpty())
}

func TestAgent_MaxTurnsKeepsQueuedMessages(t *testing.T) {
	tests := map[string]struct {
		options  func(src MessageSource) []Option
		response func() *provider.AssistantStream
	}{
		"steering": {
			options: func(src MessageSource) []Option {
				var executions atomic.Int32
				return []Option{WithTools(echoTool(&executions)), WithSteering(src)}
			},
			response: func() *provider.AssistantStream {
				return assistantTurn(provider.StopReasonToolUse, toolCall("call_1", map[string]any{"text": "x"}))
			},
		},
		"follow-up": {
			options: func(src MessageSource) []Option {
				return []Option{WithFollowUp(src)}
			},
			response: func() *provider.AssistantStream {
				return assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "done"})
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			p := NewMockProvider(t)
			p.EXPECT().Stream(mock.Anything, mock.Anything, mock.Anything).Return(test.response()).Once()

			var polled atomic.Bool
			queued := provider.NewUserMessage("one more thing")
			src := func(context.Context) []AgentMessage {
				if polled.CompareAndSwap(false, true) {
					return []AgentMessage{queued}
				}
				return nil
			}

			opts := append(test.options(src), WithStrategy(MaxTurns(1)))
			agent := newTestAgent(p, opts...)
			events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))

			g.Expect(polled.Load()).To(BeTrue())
			g.Expect(messages[len(messages)-1]).To(BeIdenticalTo(queued))
			g.Expect(eventTypes(events[len(events)-3:])).To(Equal([]EventType{
				EventTypeMessageStart, EventTypeMessageEnd, EventTypeAgentEnd,
			}))
			g.Expect(events[len(events)-2].(MessageEndEvent).Message).To(BeIdenticalTo(queued))
			g.Expect(lastEnd(events).Messages).To(Equal(messages))
		})
	}
}

func TestAgent_Continue(t *testing.T) {
	tests := map[string]struct {
		transcript    []AgentMessage
		expectedError error
	}{
		"empty transcript": {
			expectedError: ErrEmptyContext,
		},
		"last message is assistant": {
			transcript: []AgentMessage{
				provider.NewUserMessage("hi"),
				&provider.AssistantMessage{StopReason: provider.StopReasonStop, Content: provider.Text("hello")},
			},
			expectedError: ErrLastMessageAssistant,
		},
		"last message is a tool result": {
			transcript: []AgentMessage{
				provider.NewUserMessage("hi"),
				&provider.AssistantMessage{StopReason: provider.StopReasonToolUse, Content: []provider.ContentBlock{toolCall("call_1", nil)}},
				&provider.ToolResultMessage{ToolCallID: "call_1", ToolName: "echo", Content: provider.Text("x")},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			p := NewMockProvider(t)
			if test.expectedError == nil {
				p.EXPECT().
					Stream(mock.Anything, mock.Anything, mock.MatchedBy(func(c provider.Context) bool {
						return len(c.Messages) == len(test.transcript)
					})).
					Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "continued"})).
					Once()
			}

			stream, err := newTestAgent(p).Continue(context.Background(), test.transcript)
			if test.expectedError != nil {
				g.Expect(err).To(MatchError(test.expectedError))
				g.Expect(stream).To(BeNil())
				return
			}
			g.Expect(err).ToNot(HaveOccurred())

			_, messages := collect(g, stream)
			g.Expect(messages).To(HaveLen(1))
			g.Expect(messages[0].(*provider.AssistantMessage).Text()).To(Equal("continued"))
		})
	}
}

func TestAgent_SingleTurn(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().
		Stream(mock.Anything, mock.Anything, mock.MatchedBy(func(c provider.Context) bool {
			return len(c.Tools) == 0
		})).
		Return(assistantTurn(provider.StopReasonToolUse, toolCall("call_1", map[string]any{"text": "x"}))).
		Once()

	var executions atomic.Int32
	agent := newTestAgent(p, WithTools(echoTool(&executions)))
	events, messages := collect(g, agent.SingleTurn(context.Background(), []AgentMessage{provider.NewUserMessage("hi")}))

	g.Expect(executions.Load()).To(BeZero())
	g.Expect(messages).To(HaveLen(1))
	g.Expect(lastEnd(events).Error).To(BeEmpty())
	g.Expect(eventTypes(events)).ToNot(ContainElement(EventTypeToolExecutionStart))
}

func TestAgent_TransformContext(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	p.EXPECT().
		Stream(mock.Anything, mock.Anything, mock.MatchedBy(func(c provider.Context) bool {
			return len(c.Messages) == 1 && c.Messages[0].(*provider.UserMessage).Content[0].(provider.TextContent).Text == "latest"
		})).
		Return(assistantTurn(provider.StopReasonStop, provider.TextContent{Text: "ok"})).
		Once()

	keepLast := Hooks{
		TransformContext: func(_ context.Context, messages []AgentMessage) ([]AgentMessage, error) {
			return messages[len(messages)-1:], nil
		},
	}

	agent := newTestAgent(p, WithHooks(keepLast))
	transcript := []AgentMessage{provider.NewUserMessage("old")}
	_, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("latest")}, transcript))
	g.Expect(messages).To(HaveLen(2))
}

func TestAgent_RunStartHookError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := NewMockProvider(t)
	agent := newTestAgent(p, WithHooks(Hooks{
		OnRunStart: func(context.Context, string) error { return errors.New("quota exceeded") },
	}))

	events, messages := collect(g, agent.Run(context.Background(), []AgentMessage{provider.NewUserMessage("go")}, nil))
	g.Expect(eventTypes(events)).To(Equal([]EventType{EventTypeAgentStart, EventTypeAgentEnd}))
	g.Expect(lastEnd(events).Error).To(Equal("on run start hook: quota exceeded"))
	g.Expect(messages).To(BeEmpty())
}
