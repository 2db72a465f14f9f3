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
	"context"
	"encoding/json"
	"errors"
	"iter"
	"testing"

	. "github.com/onsi/gomega"
)

// textMachine treats every raw string as a text delta; "." ends the message
// and "!" panics.
type textMachine struct {
	msg    *AssistantMessage
	open   bool
	reason StopReason
}

func newTextMachine() *textMachine {
	return &textMachine{msg: NewAssistantMessage(Model{ID: "m", API: APIOpenAICompletions, Provider: "test"})}
}

func (m *textMachine) Message() *AssistantMessage { return m.msg }

func (m *textMachine) Apply(raw string) ([]AssistantEvent, bool, error) {
	switch raw {
	case ".":
		return nil, true, nil
	case "!":
		panic("boom")
	case "?":
		return nil, false, ErrUnhandledStopReason
	}

	var events []AssistantEvent
	if !m.open {
		m.open = true
		m.msg.Content = append(m.msg.Content, TextContent{})
		events = append(events, NewBlockEvent(EventTextStart, 0, "", m.msg))
	}
	text := m.msg.Content[0].(TextContent)
	text.Text += raw
	m.msg.Content[0] = text
	events = append(events, NewBlockEvent(EventTextDelta, 0, raw, m.msg))
	return events, false, nil
}

func (m *textMachine) Finish() ([]AssistantEvent, error) {
	m.msg.StopReason = m.reason
	if !m.open {
		return nil, nil
	}
	m.open = false
	return []AssistantEvent{NewBlockEndEvent(0, m.msg)}, nil
}

func failingSource(values []string, err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
		yield("", err)
	}
}

func TestDrive(t *testing.T) {
	tests := map[string]struct {
		source         iter.Seq2[string, error]
		reason         StopReason
		expectedTypes  []EventType
		expectedStop   StopReason
		expectedText   string
		expectedErrMsg string
	}{
		"explicit completion": {
			source:        FromSlice("Hello", " world", ".", "ignored"),
			expectedTypes: []EventType{EventStart, EventTextStart, EventTextDelta, EventTextDelta, EventTextEnd, EventDone},
			expectedStop:  StopReasonStop,
			expectedText:  "Hello world",
		},
		"source ends without terminus": {
			source:        FromSlice("Hi"),
			expectedTypes: []EventType{EventStart, EventTextStart, EventTextDelta, EventTextEnd, EventDone},
			expectedStop:  StopReasonStop,
			expectedText:  "Hi",
		},
		"empty source": {
			source:        FromSlice[string](),
			expectedTypes: []EventType{EventStart, EventDone},
			expectedStop:  StopReasonStop,
		},
		"source error": {
			source:         failingSource([]string{"partial"}, errors.New("connection reset")),
			expectedTypes:  []EventType{EventStart, EventTextStart, EventTextDelta, EventError},
			expectedStop:   StopReasonError,
			expectedText:   "partial",
			expectedErrMsg: "connection reset",
		},
		"state machine failure": {
			source:         FromSlice("a", "?"),
			expectedTypes:  []EventType{EventStart, EventTextStart, EventTextDelta, EventError},
			expectedStop:   StopReasonError,
			expectedText:   "a",
			expectedErrMsg: ErrUnhandledStopReason.Error(),
		},
		"panic is contained": {
			source:         FromSlice("!"),
			expectedTypes:  []EventType{EventStart, EventError},
			expectedStop:   StopReasonError,
			expectedErrMsg: "adapter panic: boom",
		},
		"failure stop reason becomes error event": {
			source:         FromSlice("x"),
			reason:         StopReasonError,
			expectedTypes:  []EventType{EventStart, EventTextStart, EventTextDelta, EventTextEnd, EventError},
			expectedStop:   StopReasonError,
			expectedText:   "x",
			expectedErrMsg: `provider ended the turn with stop reason "error"`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			sm := newTextMachine()
			sm.reason = test.reason
			events, msg, err := Collect(context.Background(), Drive(context.Background(), sm, test.source))

			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(EventTypes(events)).To(Equal(test.expectedTypes))
			g.Expect(msg.StopReason).To(Equal(test.expectedStop))
			g.Expect(msg.Text()).To(Equal(test.expectedText))
			g.Expect(msg.ErrorMessage).To(Equal(test.expectedErrMsg))
			g.Expect(events[len(events)-1].Message).To(BeIdenticalTo(msg))
		})
	}
}

func TestDrive_CancelledContextAborts(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, msg, err := Collect(context.Background(), Drive(ctx, newTextMachine(), failingSource(nil, context.Canceled)))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(EventTypes(events)).To(Equal([]EventType{EventStart, EventError}))
	g.Expect(msg.StopReason).To(Equal(StopReasonAborted))
}

func TestDrive_PartialSnapshotsAreIndependent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	events, _, err := Collect(context.Background(), Drive(context.Background(), newTextMachine(), FromSlice("a", "b")))
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(events[2].Partial.Text()).To(Equal("a"))
	g.Expect(events[3].Partial.Text()).To(Equal("ab"))
}

func TestFailed(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	events, msg, err := Collect(context.Background(), Failed(context.Background(), Model{ID: "m"}, errors.New("bad request")))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(EventTypes(events)).To(Equal([]EventType{EventStart, EventError}))
	g.Expect(msg.ErrorMessage).To(Equal("bad request"))
	g.Expect(msg.Model).To(Equal("m"))
}

func TestContentBlocks_MarshalWithTypeTag(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	msg := &AssistantMessage{
		Content: []ContentBlock{
			ThinkingContent{Thinking: "hmm", Signature: "sig"},
			TextContent{Text: "hi"},
			ToolCall{ID: "c1", Name: "read"},
		},
		StopReason: StopReasonToolUse,
	}

	raw, err := json.Marshal(msg)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(raw)).To(ContainSubstring(`"role":"assistant"`))
	g.Expect(string(raw)).To(ContainSubstring(`{"signature":"sig","thinking":"hmm","type":"thinking"}`))
	g.Expect(string(raw)).To(ContainSubstring(`{"text":"hi","type":"text"}`))
	g.Expect(string(raw)).To(ContainSubstring(`{"arguments":{},"id":"c1","name":"read","type":"toolCall"}`))
}

func TestCalculateCost(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	usage := Usage{Input: 1_000_000, Output: 500_000, CacheRead: 2_000_000}
	cost := CalculateCost(Model{Cost: ModelCost{Input: 3, Output: 15, CacheRead: 0.3}}, &usage)

	g.Expect(cost.Input).To(BeNumerically("~", 3))
	g.Expect(cost.Output).To(BeNumerically("~", 7.5))
	g.Expect(cost.CacheRead).To(BeNumerically("~", 0.6))
	g.Expect(cost.Total).To(BeNumerically("~", 11.1))
	g.Expect(usage.Cost).To(Equal(cost))
}
