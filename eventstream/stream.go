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

// Package eventstream provides a single-consumer event stream that also
// exposes a one-shot final result.
package eventstream

import (
	"context"
	"io"
	"iter"
	"sync"
)

// TerminalFunc reports whether ev ends the stream and, if so, the result
// it carries.
type TerminalFunc[E, R any] func(ev E) (R, bool)

// Stream delivers pushed events to one consumer in push order. Pushing a
// terminal event settles the result and finishes the stream; later pushes
// are dropped. The queue is unbounded so producers never block.
type Stream[E, R any] struct {
	terminal TerminalFunc[E, R]

	mu       sync.Mutex
	queue    []E
	finished bool
	result   R

	wake chan struct{}
	done chan struct{}
}

// New creates an open stream. terminal classifies the events that settle it.
func New[E, R any](terminal TerminalFunc[E, R]) *Stream[E, R] {
	return &Stream[E, R]{
		terminal: terminal,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Push enqueues ev. It returns false if the stream was already finished,
// in which case ev is dropped.
func (s *Stream[E, R]) Push(ev E) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	if result, ok := s.terminal(ev); ok {
		s.settleLocked(result)
	}
	s.mu.Unlock()

	s.signal()
	return true
}

// End settles the stream with result without a terminal event. It is a
// no-op returning false when the stream is already finished.
func (s *Stream[E, R]) End(result R) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.settleLocked(result)
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Stream[E, R]) settleLocked(result R) {
	s.result = result
	s.finished = true
	close(s.done)
}

func (s *Stream[E, R]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available and returns it. Once the stream
// is finished and drained it returns io.EOF.
func (s *Stream[E, R]) Next(ctx context.Context) (E, error) {
	var zero E
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		finished := s.finished
		s.mu.Unlock()

		if finished {
			return zero, io.EOF
		}

		select {
		case <-s.wake:
		case <-s.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Events iterates over the stream until it is drained or ctx is done.
func (s *Stream[E, R]) Events(ctx context.Context) iter.Seq[E] {
	return func(yield func(E) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Result waits for the stream to settle and returns its result. It may be
// called any number of times, before or after settlement.
func (s *Stream[E, R]) Result(ctx context.Context) (R, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, nil
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Done is closed once the stream has settled.
func (s *Stream[E, R]) Done() <-chan struct{} {
	return s.done
}

// Finished reports whether the stream has settled.
func (s *Stream[E, R]) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}
