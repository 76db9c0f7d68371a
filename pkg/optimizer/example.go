// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
)

// Example is a record of named fields, some of which are declared inputs.
// The remaining fields are labels.
type Example struct {
	fields    map[string]any
	inputKeys []string
}

// NewExample copies fields into a new Example with no declared inputs.
func NewExample(fields map[string]any) Example {
	return Example{fields: maps.Clone(fields)}
}

// WithInputs returns a copy of e with keys declared as inputs.
func (e Example) WithInputs(keys ...string) Example {
	return Example{fields: maps.Clone(e.fields), inputKeys: slices.Clone(keys)}
}

func (e Example) Get(key string) (any, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// String returns the field as text, or "" when it is absent.
func (e Example) String(key string) string {
	v, ok := e.fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the field names in sorted order.
func (e Example) Keys() []string {
	keys := slices.Collect(maps.Keys(e.fields))
	sort.Strings(keys)
	return keys
}

func (e Example) InputKeys() []string {
	return slices.Clone(e.inputKeys)
}

// Inputs returns the declared input fields. It is empty until WithInputs
// has been called.
func (e Example) Inputs() map[string]any {
	out := make(map[string]any, len(e.inputKeys))
	for _, k := range e.inputKeys {
		if v, ok := e.fields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Labels returns the fields that are not declared inputs.
func (e Example) Labels() map[string]any {
	out := make(map[string]any)
	for k, v := range e.fields {
		if !slices.Contains(e.inputKeys, k) {
			out[k] = v
		}
	}
	return out
}

// Fields returns a copy of all fields.
func (e Example) Fields() map[string]any {
	return maps.Clone(e.fields)
}

// Equal compares field contents; input declarations are ignored.
func (e Example) Equal(other Example) bool {
	return maps.EqualFunc(e.fields, other.fields, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

func (e Example) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields)
}

func (e *Example) UnmarshalJSON(b []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	e.fields = fields
	e.inputKeys = nil
	return nil
}

// Prediction holds the output fields produced by a predictor.
type Prediction map[string]any

// String returns the named field as text.
func (p Prediction) String(name string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns the named field as a boolean; absent or non-bool fields are false.
func (p Prediction) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}
