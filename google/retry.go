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

package google

import (
	"context"
	"errors"
	"fmt"
	"iter"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// Attempt opens one streamed request.
type Attempt func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error]

// ErrNoChunks is returned when every attempt finished without a chunk.
var ErrNoChunks = errors.New("no response chunks received")

// StreamWithRetry streams from the first attempt that yields at least one
// chunk, trying at most maxAttempts of them. Attempts that end (or fail)
// before their first chunk are skipped. A single start event is emitted
// however many attempts are skipped.
func StreamWithRetry(ctx context.Context, model provider.Model, attempts []Attempt, maxAttempts int) *provider.AssistantStream {
	return Stream(ctx, model, FirstNonEmpty(ctx, attempts, maxAttempts))
}

// FirstNonEmpty chains attempts into a single source that replays the
// first attempt producing at least one chunk.
func FirstNonEmpty(ctx context.Context, attempts []Attempt, maxAttempts int) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		limit := min(maxAttempts, len(attempts))
		var lastErr error

		for i := 0; i < limit; i++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			received := 0
			var attemptErr error
			for chunk, err := range attempts[i](ctx) {
				if err != nil {
					if received > 0 {
						yield(nil, err)
						return
					}
					attemptErr = err
					break
				}
				received++
				if !yield(chunk, nil) {
					return
				}
			}
			if received > 0 {
				return
			}

			entry := log.WithFields(log.Fields{
				"attempt":      i + 1,
				"max_attempts": limit,
			})
			if attemptErr != nil {
				lastErr = attemptErr
				entry = entry.WithError(attemptErr)
			}
			entry.Warn("google stream attempt produced no chunks")
		}

		err := fmt.Errorf("%w after %d attempt(s)", ErrNoChunks, limit)
		if lastErr != nil {
			err = fmt.Errorf("%w: %w", err, lastErr)
		}
		yield(nil, err)
	}
}

// Chunks returns an attempt replaying fixed chunks.
func Chunks(chunks ...*genai.GenerateContentResponse) Attempt {
	return func(context.Context) iter.Seq2[*genai.GenerateContentResponse, error] {
		return provider.FromSlice(chunks...)
	}
}
