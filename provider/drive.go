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
	"errors"
	"fmt"
	"iter"
)

// ErrUnhandledStopReason is returned by state machines when a provider
// reports a stop or finish reason with no canonical mapping.
var ErrUnhandledStopReason = errors.New("unhandled stop reason")

// StateMachine folds raw provider events of type T into an assistant
// message.
//
// Apply returns the canonical events produced by raw and whether raw was
// the provider's explicit end of message. A non-nil error fails the turn.
// Finish is called once when no more raw events will arrive; it closes
// whatever is still open and settles the stop reason.
type StateMachine[T any] interface {
	Message() *AssistantMessage
	Apply(raw T) (events []AssistantEvent, complete bool, err error)
	Finish() ([]AssistantEvent, error)
}

// Drive runs sm over src in a new goroutine and returns the stream it
// publishes to.
func Drive[T any](ctx context.Context, sm StateMachine[T], src iter.Seq2[T, error]) *AssistantStream {
	out := NewAssistantStream()
	go Pump(ctx, out, sm, src)
	return out
}

// Pump publishes the canonical events for src on out and always settles
// it: exactly one start, then deltas, then exactly one done or error.
func Pump[T any](ctx context.Context, out *AssistantStream, sm StateMachine[T], src iter.Seq2[T, error]) {
	defer func() {
		if r := recover(); r != nil {
			Fail(ctx, out, sm.Message(), fmt.Errorf("adapter panic: %v", r))
		}
		// Settles streams whose terminal event was never pushed.
		out.End(sm.Message().Clone())
	}()

	out.Push(NewStartEvent(sm.Message()))

	completed := false
	for raw, err := range src {
		if err != nil {
			Fail(ctx, out, sm.Message(), err)
			return
		}

		events, complete, err := sm.Apply(raw)
		pushAll(out, events)
		if err != nil {
			Fail(ctx, out, sm.Message(), err)
			return
		}
		if complete {
			completed = true
			break
		}
	}

	if !completed && ctx.Err() != nil {
		Fail(ctx, out, sm.Message(), ctx.Err())
		return
	}

	events, err := sm.Finish()
	pushAll(out, events)
	if err != nil {
		Fail(ctx, out, sm.Message(), err)
		return
	}

	msg := sm.Message()
	if msg.StopReason == "" {
		msg.StopReason = StopReasonStop
	}
	if msg.StopReason.IsFailure() {
		if msg.ErrorMessage == "" {
			msg.ErrorMessage = fmt.Sprintf("provider ended the turn with stop reason %q", msg.StopReason)
		}
		out.Push(NewErrorEvent(msg.Clone()))
		return
	}
	out.Push(NewDoneEvent(msg.Clone()))
}

// Fail marks msg as failed with err and pushes the error terminal event.
// The stop reason is aborted when ctx has been cancelled.
func Fail(ctx context.Context, out *AssistantStream, msg *AssistantMessage, err error) {
	msg.StopReason = StopReasonError
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		msg.StopReason = StopReasonAborted
	}
	msg.ErrorMessage = err.Error()
	out.Push(NewErrorEvent(msg.Clone()))
}

// Failed returns an already settled stream holding a failed message. It is
// used when a request cannot even be built.
func Failed(ctx context.Context, model Model, err error) *AssistantStream {
	out := NewAssistantStream()
	msg := NewAssistantMessage(model)
	out.Push(NewStartEvent(msg))
	Fail(ctx, out, msg, err)
	return out
}

func pushAll(out *AssistantStream, events []AssistantEvent) {
	for _, ev := range events {
		out.Push(ev)
	}
}
