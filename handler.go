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
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/alexandrevilain/polyagent-go/provider"
	"github.com/alexandrevilain/polyagent-go/sse"
)

// RunInput holds data from an incoming run request. Without prompts the
// transcript is continued.
type RunInput struct {
	Prompts  []AgentMessage
	Messages []AgentMessage
}

// RequestDecoder extracts a RunInput from an incoming HTTP request.
type RequestDecoder func(r *http.Request) (RunInput, error)

// NewHandler creates an http.Handler that serves agent runs as SSE streams.
// Each event is sent with its type as the SSE event name.
func NewHandler(agent *Agent, decoder RequestDecoder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		input, err := decoder(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var stream *AgentStream
		if len(input.Prompts) > 0 {
			stream = agent.Run(r.Context(), input.Prompts, input.Messages)
		} else {
			stream, err = agent.Continue(r.Context(), input.Messages)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		for event := range stream.Events(r.Context()) {
			data, err := json.Marshal(event)
			if err != nil {
				agent.logger.WithError(err).WithField("event", event.EventType()).Error("failed to marshal event")
				continue
			}
			if err := sse.Write(w, sse.Event{Event: string(event.EventType()), Data: string(data)}); err != nil {
				return
			}
			flusher.Flush()
		}

		// Send [DONE] marker to signal end of SSE stream
		if err := sse.Write(w, sse.Event{Data: "[DONE]"}); err != nil {
			return
		}
		flusher.Flush()
	})
}

// DefaultRequestDecoder parses a JSON body of the form
// {"prompt": "...", "messages": [...]}. Both fields are optional, but a
// request without a prompt must carry a transcript to continue.
func DefaultRequestDecoder(r *http.Request) (RunInput, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return RunInput{}, fmt.Errorf("read request: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return RunInput{}, fmt.Errorf("decode request: invalid JSON")
	}

	var input RunInput
	if messages := gjson.GetBytes(body, "messages"); messages.Exists() {
		input.Messages, err = DecodeMessages([]byte(messages.Raw))
		if err != nil {
			return RunInput{}, fmt.Errorf("decode request: %w", err)
		}
	}
	if prompt := gjson.GetBytes(body, "prompt").String(); prompt != "" {
		input.Prompts = []AgentMessage{provider.NewUserMessage(prompt)}
	}

	return input, nil
}
