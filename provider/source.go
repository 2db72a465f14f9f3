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
	"iter"
)

// Decoder is the pull interface exposed by the vendor SDK stream types.
type Decoder[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// FromDecoder adapts an SDK stream into a raw event source. The stream is
// closed when iteration stops.
func FromDecoder[T any](d Decoder[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer func() { _ = d.Close() }()

		for d.Next() {
			if !yield(d.Current(), nil) {
				return
			}
		}
		if err := d.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// FromSlice replays a fixed sequence of raw events.
func FromSlice[T any](events ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Collect drains s and returns every event together with the final message.
func Collect(ctx context.Context, s *AssistantStream) ([]AssistantEvent, *AssistantMessage, error) {
	var events []AssistantEvent
	for ev := range s.Events(ctx) {
		events = append(events, ev)
	}
	msg, err := s.Result(ctx)
	return events, msg, err
}

// EventTypes lists the type of each event, in order.
func EventTypes(events []AssistantEvent) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
