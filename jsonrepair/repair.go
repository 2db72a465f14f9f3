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

// Package jsonrepair turns truncated JSON fragments, such as tool-call
// arguments received mid-stream, into a best-guess complete value.
package jsonrepair

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// maxTrimAttempts bounds how many trailing runes are dropped while
// looking for a repairable prefix.
const maxTrimAttempts = 64

// Parse returns the best-effort JSON value encoded by s. It never fails:
// input that cannot be recovered yields an empty object.
func Parse(s string) any {
	if v, ok := decode(s); ok {
		return v
	}

	candidate := s
	for attempt := 0; attempt <= maxTrimAttempts; attempt++ {
		if v, ok := decode(closeOpen(candidate)); ok {
			return v
		}
		if candidate == "" {
			break
		}
		_, size := utf8.DecodeLastRuneInString(candidate)
		candidate = candidate[:len(candidate)-size]
	}

	return map[string]any{}
}

// ParseObject is Parse restricted to objects, which is what tool-call
// arguments always are. Non-object results are replaced by an empty object.
func ParseObject(s string) map[string]any {
	if obj, ok := Parse(s).(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}

func decode(s string) (any, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// closeOpen scans s once, then terminates an unfinished string literal and
// appends the closers implied by the brackets still open, innermost first.
func closeOpen(s string) string {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.Grow(len(s) + len(stack) + 1)
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
