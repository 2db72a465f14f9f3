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

package anthropic

import (
	"strings"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// oauthToolNames maps lower-cased tool names to the casing expected when
// authenticating with a subscription OAuth token.
var oauthToolNames = map[string]string{
	"read":         "Read",
	"write":        "Write",
	"edit":         "Edit",
	"bash":         "Bash",
	"grep":         "Grep",
	"glob":         "Glob",
	"ls":           "LS",
	"task":         "Task",
	"todowrite":    "TodoWrite",
	"webfetch":     "WebFetch",
	"websearch":    "WebSearch",
	"notebookedit": "NotebookEdit",
	"killshell":    "KillShell",
}

// ToWireName returns the OAuth-mode wire name for a tool.
func ToWireName(name string) string {
	if wire, ok := oauthToolNames[strings.ToLower(name)]; ok {
		return wire
	}
	return name
}

// FromWireName maps a wire name back to the offered tool it was derived
// from. Names matching no offered tool are returned unchanged.
func FromWireName(wire string, offered []provider.Tool) string {
	for _, t := range offered {
		if strings.EqualFold(ToWireName(t.Name), wire) {
			return t.Name
		}
	}
	return wire
}
