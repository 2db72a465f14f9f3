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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/alexandrevilain/polyagent-go/sse"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DecodeSSE decodes an alt=sse streamGenerateContent body. Chunks wrapped
// in a {"response": ...} envelope are unwrapped; error payloads end the
// stream with an error.
func DecodeSSE(ctx context.Context, r io.Reader) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for ev, err := range sse.Read(ctx, r) {
			if err != nil {
				yield(nil, err)
				return
			}

			data := strings.TrimSpace(ev.Data)
			if data == "" || data == "[DONE]" {
				continue
			}
			if !gjson.Valid(data) {
				yield(nil, fmt.Errorf("invalid JSON in event stream: %q", data))
				return
			}
			if apiErr := gjson.Get(data, "error"); apiErr.Exists() {
				yield(nil, fmt.Errorf("google API error %d (%s): %s",
					apiErr.Get("code").Int(), apiErr.Get("status").String(), apiErr.Get("message").String()))
				return
			}

			payload := data
			if wrapped := gjson.Get(data, "response"); wrapped.IsObject() {
				payload = wrapped.Raw
			}

			var chunk genai.GenerateContentResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				yield(nil, fmt.Errorf("decode response chunk: %w", err))
				return
			}
			if !yield(&chunk, nil) {
				return
			}
		}
	}
}

// HTTPAttempt posts body to url and decodes the streamed answer.
func HTTPAttempt(client HTTPDoer, url string, header http.Header, body []byte) Attempt {
	return func(ctx context.Context) iter.Seq2[*genai.GenerateContentResponse, error] {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				yield(nil, fmt.Errorf("create request: %w", err))
				return
			}
			req.Header = header.Clone()
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")

			resp, err := client.Do(req)
			if err != nil {
				yield(nil, fmt.Errorf("send request: %w", err))
				return
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				raw, _ := io.ReadAll(resp.Body)
				yield(nil, fmt.Errorf("google request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
				return
			}

			for chunk, err := range DecodeSSE(ctx, resp.Body) {
				if !yield(chunk, err) {
					return
				}
			}
		}
	}
}
