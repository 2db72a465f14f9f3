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

// Package sse frames and writes Server-Sent Events.
package sse

import (
	"bytes"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Event string
	Data  string
	ID    string
}

// Framer turns arbitrarily chunked bytes into events. It keeps partial
// lines and partially accumulated events between calls to Feed.
// A Framer is not safe for concurrent use.
type Framer struct {
	buf []byte

	event   string
	data    []string
	id      string
	pending bool
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the internal buffer and returns every event
// completed by it, in order.
func (f *Framer) Feed(chunk []byte) []Event {
	f.buf = append(f.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(f.buf[:i], []byte{'\r'}))
		f.buf = f.buf[i+1:]

		if ev, ok := f.processLine(line); ok {
			events = append(events, ev)
		}
	}

	// Release the consumed prefix once everything has been read.
	if len(f.buf) == 0 {
		f.buf = nil
	}

	return events
}

// Flush dispatches an event left open when the stream ended without a
// trailing blank line. A partial final line is treated as complete.
func (f *Framer) Flush() (Event, bool) {
	if len(f.buf) > 0 {
		line := strings.TrimSuffix(string(f.buf), "\r")
		f.buf = nil
		if ev, ok := f.processLine(line); ok {
			return ev, true
		}
	}
	return f.dispatch()
}

func (f *Framer) processLine(line string) (Event, bool) {
	if line == "" {
		return f.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		f.event = value
		f.pending = true
	case "data":
		f.data = append(f.data, value)
		f.pending = true
	case "id":
		f.id = value
		f.pending = true
	}

	return Event{}, false
}

func (f *Framer) dispatch() (Event, bool) {
	if !f.pending {
		return Event{}, false
	}

	ev := Event{
		Event: f.event,
		Data:  strings.Join(f.data, "\n"),
		ID:    f.id,
	}
	f.event, f.data, f.id, f.pending = "", nil, "", false

	return ev, true
}
