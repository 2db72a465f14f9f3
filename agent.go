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

// Package polyagent runs tool-using agents on top of the provider adapters.
package polyagent

import (
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/alexandrevilain/polyagent-go/provider"
)

var (
	// ErrEmptyContext is returned by Continue for an empty transcript.
	ErrEmptyContext = errors.New("cannot continue from an empty transcript")
	// ErrLastMessageAssistant is returned by Continue when the transcript
	// already ends with an assistant message.
	ErrLastMessageAssistant = errors.New("cannot continue from an assistant message")
)

// Agent orchestrates the agentic loop with automatic tool execution.
// It is safe for concurrent use: all per-run state lives in the run.
type Agent struct {
	provider     Provider
	model        provider.Model
	systemPrompt string
	tools        []Tool
	convert      ConvertFunc
	steering     MessageSource
	followUp     MessageSource
	strategy     LoopStrategy
	hooks        Hooks
	idGenerator  IDGenerator
	logger       log.FieldLogger
}

// NewAgent creates an Agent with the given provider and options.
func NewAgent(p Provider, opts ...Option) *Agent {
	a := &Agent{
		provider:    p,
		convert:     DefaultConvert,
		strategy:    unbounded,
		idGenerator: DefaultIDGenerator,
		logger:      log.StandardLogger(),
	}

	for _, o := range opts {
		o(a)
	}

	return a
}

// Run appends prompts to a copy of transcript and loops until the model
// stops calling tools and no follow-up message is queued.
func (a *Agent) Run(ctx context.Context, prompts []AgentMessage, transcript []AgentMessage) *AgentStream {
	return a.start(ctx, transcript, prompts, true)
}

// Continue resumes a transcript whose last message still expects an
// answer, such as a user message or tool results.
func (a *Agent) Continue(ctx context.Context, transcript []AgentMessage) (*AgentStream, error) {
	if len(transcript) == 0 {
		return nil, ErrEmptyContext
	}
	if transcript[len(transcript)-1].Role() == provider.RoleAssistant {
		return nil, ErrLastMessageAssistant
	}
	return a.start(ctx, transcript, nil, true), nil
}

// SingleTurn streams exactly one assistant turn. Tools are neither offered
// to the model nor executed.
func (a *Agent) SingleTurn(ctx context.Context, transcript []AgentMessage) *AgentStream {
	return a.start(ctx, transcript, nil, false)
}

func (a *Agent) start(ctx context.Context, transcript, prompts []AgentMessage, withTools bool) *AgentStream {
	r := &run{
		agent:      a,
		id:         a.idGenerator("run"),
		out:        newAgentStream(),
		transcript: slices.Clone(transcript),
		withTools:  withTools,
	}
	r.logger = a.logger.WithField("run_id", r.id)

	go r.execute(ctx, prompts)
	return r.out
}

// run holds the state of one Run, Continue or SingleTurn call.
type run struct {
	agent      *Agent
	id         string
	out        *AgentStream
	logger     log.FieldLogger
	transcript []AgentMessage
	produced   []AgentMessage
	usage      provider.Usage
	withTools  bool
}

func (r *run) execute(ctx context.Context, prompts []AgentMessage) {
	r.out.Push(NewAgentStartEvent(r.id))

	var (
		stop provider.StopReason
		err  error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("agent run panicked: %v", rec)
			}
		}()
		stop, err = r.loop(ctx, prompts)
	}()

	r.finish(ctx, stop, err)
}

func (r *run) loop(ctx context.Context, pending []AgentMessage) (provider.StopReason, error) {
	a := r.agent

	if a.hooks.OnRunStart != nil {
		if err := a.hooks.OnRunStart(ctx, r.id); err != nil {
			return "", fmt.Errorf("on run start hook: %w", err)
		}
	}

	var lastStop provider.StopReason
	for turn := 1; ; turn++ {
		if !a.strategy(LoopState{Turns: turn - 1, Messages: r.transcript, StopReason: lastStop}) {
			// Queued messages were already taken from their source.
			r.emitPending(pending)
			return lastStop, nil
		}

		r.logger.WithField("turn", turn).Debug("starting turn")
		r.out.Push(NewTurnStartEvent(turn))

		r.emitPending(pending)
		pending = nil

		msg := r.streamTurn(ctx)
		lastStop = msg.StopReason
		r.addUsage(msg.Usage)

		if msg.StopReason.IsFailure() {
			r.out.Push(NewTurnEndEvent(turn, msg, nil))
			return lastStop, turnError(msg)
		}

		calls := msg.ToolCalls()
		var (
			results  []*provider.ToolResultMessage
			steering []AgentMessage
		)
		if r.withTools && len(calls) > 0 {
			results, steering = r.executeToolCalls(ctx, calls)
		}
		r.out.Push(NewTurnEndEvent(turn, msg, results))

		if a.hooks.OnTurnEnd != nil {
			if err := a.hooks.OnTurnEnd(ctx, TurnResult{Turn: turn, Message: msg, ToolResults: results}); err != nil {
				return lastStop, fmt.Errorf("on turn end hook: %w", err)
			}
		}

		switch {
		case !r.withTools:
			return lastStop, nil
		case len(steering) > 0:
			pending = steering
		case len(calls) > 0:
			// Tool results are answered by the next turn.
		case a.followUp != nil:
			pending = a.followUp(ctx)
			if len(pending) == 0 {
				return lastStop, nil
			}
		default:
			return lastStop, nil
		}
	}
}

func (r *run) emitPending(pending []AgentMessage) {
	for _, m := range pending {
		r.append(m)
		r.out.Push(NewMessageStartEvent(m))
		r.out.Push(NewMessageEndEvent(m))
	}
}

func turnError(msg *provider.AssistantMessage) error {
	if msg.ErrorMessage != "" {
		return errors.New(msg.ErrorMessage)
	}
	return fmt.Errorf("assistant turn ended with stop reason %q", msg.StopReason)
}

func (r *run) finish(ctx context.Context, stop provider.StopReason, err error) {
	a := r.agent

	if err == nil && a.hooks.OnFinish != nil {
		err = a.hooks.OnFinish(ctx, RunResult{
			RunID:      r.id,
			Messages:   r.produced,
			Usage:      r.usage,
			StopReason: stop,
		})
		if err != nil {
			err = fmt.Errorf("on finish hook: %w", err)
		}
	}

	var errMessage string
	if err != nil {
		errMessage = err.Error()
		r.logger.WithError(err).Warn("agent run failed")
		if a.hooks.OnError != nil {
			a.hooks.OnError(ctx, err)
		}
	}

	r.out.Push(NewAgentEndEvent(r.id, r.produced, errMessage))
}

// streamTurn streams one assistant message, keeping the last transcript
// entry in sync with the partial message.
func (r *run) streamTurn(ctx context.Context) *provider.AssistantMessage {
	a := r.agent

	messages := r.transcript
	if a.hooks.TransformContext != nil {
		var err error
		messages, err = a.hooks.TransformContext(ctx, slices.Clone(messages))
		if err != nil {
			return r.failTurn(fmt.Errorf("transform context: %w", err))
		}
	}

	converted, err := a.convert(messages)
	if err != nil {
		return r.failTurn(err)
	}

	c := provider.Context{SystemPrompt: a.systemPrompt, Messages: converted}
	if r.withTools {
		for _, t := range a.tools {
			c.Tools = append(c.Tools, t.Definition())
		}
	}

	stream := a.provider.Stream(ctx, a.model, c)

	var partial *provider.AssistantMessage
	for ev := range stream.Events(ctx) {
		switch {
		case ev.Type == provider.EventStart:
			if partial == nil {
				partial = ev.Partial
				r.append(partial)
				r.out.Push(NewMessageStartEvent(partial))
			}
			continue
		case ev.Type.IsTerminal():
			if ev.Message == nil {
				continue
			}
			r.out.Push(NewMessageUpdateEvent(ev.Message, ev))
			continue
		}

		if partial == nil {
			partial = ev.Partial
			r.append(partial)
			r.out.Push(NewMessageStartEvent(partial))
		} else {
			partial = ev.Partial
			r.replaceLast(partial)
		}
		r.out.Push(NewMessageUpdateEvent(partial, ev))
	}

	final, err := stream.Result(ctx)
	if err != nil || final == nil {
		final = provider.NewAssistantMessage(a.model)
		if partial != nil {
			final = partial.Clone()
		}
		final.StopReason = provider.StopReasonAborted
		final.ErrorMessage = "assistant stream ended without a result"
		if err != nil {
			final.ErrorMessage = err.Error()
		}
	}

	if partial == nil {
		r.append(final)
		r.out.Push(NewMessageStartEvent(final))
	} else {
		r.replaceLast(final)
	}
	r.out.Push(NewMessageEndEvent(final))
	return final
}

// failTurn records an assistant message for a turn that failed before any
// provider call.
func (r *run) failTurn(err error) *provider.AssistantMessage {
	msg := provider.NewAssistantMessage(r.agent.model)
	msg.StopReason = provider.StopReasonError
	msg.ErrorMessage = err.Error()

	r.append(msg)
	r.out.Push(NewMessageStartEvent(msg))
	r.out.Push(NewMessageEndEvent(msg))
	return msg
}

// executeToolCalls runs calls in order. When steering messages arrive after
// a result, the remaining calls are answered with skipped error results and
// the steering messages are returned.
func (r *run) executeToolCalls(ctx context.Context, calls []provider.ToolCall) ([]*provider.ToolResultMessage, []AgentMessage) {
	a := r.agent
	results := make([]*provider.ToolResultMessage, 0, len(calls))

	for i, call := range calls {
		r.out.Push(NewToolExecutionStartEvent(call))
		r.logger.WithFields(log.Fields{
			"tool":         call.Name,
			"tool_call_id": call.ID,
		}).Debug("executing tool")

		outcome := executeTool(ctx, a.tools, call, func(partial ToolResult) {
			r.out.Push(NewToolExecutionUpdateEvent(call, partial))
		})
		results = append(results, r.recordToolResult(call, outcome))

		if a.steering == nil {
			continue
		}
		steering := a.steering(ctx)
		if len(steering) == 0 {
			continue
		}

		for _, skipped := range calls[i+1:] {
			r.out.Push(NewToolExecutionStartEvent(skipped))
			results = append(results, r.recordToolResult(skipped, errorOutcome(skippedToolResult)))
		}
		return results, steering
	}

	return results, nil
}

func (r *run) recordToolResult(call provider.ToolCall, outcome toolOutcome) *provider.ToolResultMessage {
	r.out.Push(NewToolExecutionEndEvent(call, outcome.result, outcome.isError))

	msg := outcome.message(call)
	r.append(msg)
	r.out.Push(NewMessageStartEvent(msg))
	r.out.Push(NewMessageEndEvent(msg))
	return msg
}

func (r *run) append(m AgentMessage) {
	r.transcript = append(r.transcript, m)
	r.produced = append(r.produced, m)
}

func (r *run) replaceLast(m AgentMessage) {
	r.transcript[len(r.transcript)-1] = m
	r.produced[len(r.produced)-1] = m
}

func (r *run) addUsage(u provider.Usage) {
	r.usage.Input += u.Input
	r.usage.Output += u.Output
	r.usage.CacheRead += u.CacheRead
	r.usage.CacheWrite += u.CacheWrite
	r.usage.TotalTokens += u.TotalTokens
	r.usage.Cost.Input += u.Cost.Input
	r.usage.Cost.Output += u.Cost.Output
	r.usage.Cost.CacheRead += u.Cost.CacheRead
	r.usage.Cost.CacheWrite += u.Cost.CacheWrite
	r.usage.Cost.Total += u.Cost.Total
}
