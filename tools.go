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
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/alexandrevilain/polyagent-go/provider"
	"github.com/alexandrevilain/polyagent-go/validation"
)

// skippedToolResult is the text of results for calls dropped because a
// steering message arrived.
const skippedToolResult = "Skipped due to queued user message."

// ToolResult is what a tool returns to the model. Details is opaque data
// kept in the transcript for the application.
type ToolResult struct {
	Content []provider.ContentBlock `json:"content"`
	Details json.RawMessage         `json:"details,omitempty"`
}

// TextResult returns a result holding a single text block.
func TextResult(text string) ToolResult {
	return ToolResult{Content: provider.Text(text)}
}

// ToolUpdateFunc receives progress reported by a running tool.
type ToolUpdateFunc func(partial ToolResult)

// ToolExecuteFunc runs a tool call with arguments that already passed
// schema validation.
type ToolExecuteFunc func(ctx context.Context, toolCallID string, args map[string]any, onUpdate ToolUpdateFunc) (ToolResult, error)

// Tool defines a function the model can call.
type Tool struct {
	Name string
	// Label is a human readable name for user interfaces.
	Label       string
	Description string
	// Parameters is a JSON Schema object.
	Parameters map[string]any
	Execute    ToolExecuteFunc
}

// Definition returns the description sent to providers.
func (t Tool) Definition() provider.Tool {
	return provider.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// NewTypedTool creates a tool whose parameters schema is derived from T and
// whose arguments are decoded into T before fn runs. Struct fields use json
// and jsonschema tags.
func NewTypedTool[T any](name, description string, fn func(ctx context.Context, toolCallID string, args T, onUpdate ToolUpdateFunc) (ToolResult, error)) Tool {
	return Tool{
		Name:        name,
		Label:       name,
		Description: description,
		Parameters:  schemaFor[T](),
		Execute: func(ctx context.Context, toolCallID string, args map[string]any, onUpdate ToolUpdateFunc) (ToolResult, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return ToolResult{}, fmt.Errorf("encode arguments: %w", err)
			}
			var typed T
			if err := json.Unmarshal(raw, &typed); err != nil {
				return ToolResult{}, fmt.Errorf("decode arguments: %w", err)
			}
			return fn(ctx, toolCallID, typed, onUpdate)
		},
	}
}

func schemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	raw, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}

	schema := map[string]any{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(fmt.Sprintf("failed to decode schema for type %T: %v", zero, err))
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return schema
}

// toolOutcome is the handled form of one tool call.
type toolOutcome struct {
	result  ToolResult
	isError bool
}

func (o toolOutcome) message(call provider.ToolCall) *provider.ToolResultMessage {
	return &provider.ToolResultMessage{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    o.result.Content,
		Details:    o.result.Details,
		IsError:    o.isError,
		Timestamp:  time.Now(),
	}
}

func errorOutcome(message string) toolOutcome {
	return toolOutcome{result: TextResult(message), isError: true}
}

// executeTool looks up, validates and runs call. Lookup, validation and
// execution failures all become error results.
func executeTool(ctx context.Context, tools []Tool, call provider.ToolCall, onUpdate ToolUpdateFunc) (outcome toolOutcome) {
	idx := slices.IndexFunc(tools, func(t Tool) bool { return t.Name == call.Name })
	if idx < 0 {
		return errorOutcome((&validation.ToolNotFoundError{Name: call.Name}).Error())
	}
	tool := tools[idx]

	args, err := validation.ValidateToolCall([]provider.Tool{tool.Definition()}, call)
	if err != nil {
		return errorOutcome(err.Error())
	}

	if tool.Execute == nil {
		return errorOutcome(fmt.Sprintf("tool %q has no execute function", call.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = errorOutcome(fmt.Sprintf("tool %q panicked: %v", call.Name, r))
		}
	}()

	result, err := tool.Execute(ctx, call.ID, args, onUpdate)
	if err != nil {
		return errorOutcome(err.Error())
	}
	if result.Content == nil {
		result.Content = []provider.ContentBlock{}
	}
	return toolOutcome{result: result}
}
