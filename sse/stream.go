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

package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const readChunkSize = 4096

// Read frames r into events. Iteration stops at EOF, on the first read
// error, or when ctx is cancelled.
func Read(ctx context.Context, r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		framer := NewFramer()
		buf := make([]byte, readChunkSize)

		for {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			n, err := r.Read(buf)
			if n > 0 {
				for _, ev := range framer.Feed(buf[:n]) {
					if !yield(ev, nil) {
						return
					}
				}
			}

			if errors.Is(err, io.EOF) {
				if ev, ok := framer.Flush(); ok {
					yield(ev, nil)
				}
				return
			}
			if err != nil {
				yield(Event{}, fmt.Errorf("read event stream: %w", err))
				return
			}
		}
	}
}

// Write encodes ev in wire format. Multi-line data is split across
// several data fields.
func Write(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	if ev.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Event)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
