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

// Package validation checks tool-call arguments against the JSON Schema
// subset used for tool parameters.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/alexandrevilain/polyagent-go/provider"
)

// ValidationError reports the first schema violation found.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ToolNotFoundError is returned when a call names a tool that is not
// offered.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// ValidateToolCall finds the tool named by call and validates its
// arguments, returning them on success.
func ValidateToolCall(tools []provider.Tool, call provider.ToolCall) (map[string]any, error) {
	idx := slices.IndexFunc(tools, func(t provider.Tool) bool { return t.Name == call.Name })
	if idx < 0 {
		return nil, &ToolNotFoundError{Name: call.Name}
	}

	args := provider.CloneArguments(call.Arguments)
	if err := ValidateArguments(tools[idx].Parameters, args); err != nil {
		return nil, fmt.Errorf("validation failed for tool %q: %w", call.Name, err)
	}
	return args, nil
}

// ValidateArguments validates args against schema. A nil schema accepts
// anything.
func ValidateArguments(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	return validate(schema, args, "root")
}

func validate(schema map[string]any, value any, path string) error {
	if types := schemaTypes(schema); len(types) > 0 {
		matched := false
		for _, t := range types {
			if hasType(value, t) {
				matched = true
				break
			}
		}
		if !matched {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("expected %s, got %s", strings.Join(types, " or "), describe(value)),
			}
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}
		for i, elem := range v {
			if err := validate(items, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case string:
		if enum, ok := schema["enum"]; ok {
			allowed := stringList(enum)
			if !slices.Contains(allowed, v) {
				return &ValidationError{
					Path:    path,
					Message: fmt.Sprintf("value %q is not one of [%s]", v, strings.Join(allowed, ", ")),
				}
			}
		}
	}
	return nil
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	properties, _ := schema["properties"].(map[string]any)

	for _, name := range stringList(schema["required"]) {
		if _, ok := obj[name]; !ok {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("missing required property %q", name),
			}
		}
	}

	if additional, ok := schema["additionalProperties"].(bool); ok && !additional {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if _, declared := properties[k]; !declared {
				return &ValidationError{
					Path:    path + "." + k,
					Message: "property is not allowed",
				}
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value, present := obj[name]
		if !present {
			continue
		}
		propSchema, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		if err := validate(propSchema, value, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func schemaTypes(schema map[string]any) []string {
	switch t := schema["type"].(type) {
	case string:
		return []string{t}
	default:
		return stringList(t)
	}
}

// stringList accepts both []any (decoded JSON) and []string (hand-written
// schemas).
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func hasType(value any, t string) bool {
	switch t {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	case "number":
		_, ok := toFloat(value)
		return ok
	case "integer":
		f, ok := toFloat(value)
		return ok && !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
	}
	// Unknown type keywords do not constrain the value.
	return true
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		if f, ok := toFloat(v); ok {
			return fmt.Sprintf("number %v", f)
		}
		return fmt.Sprintf("%T", v)
	}
}
