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

// Package optimizer is a small declarative prompt-programming core: typed
// signatures, few-shot predictors rendered through a chat adapter, a
// bootstrap few-shot compiler, evaluation and artifact persistence.
package optimizer

import (
	"fmt"
	"strings"
)

type FieldType string

const (
	FieldString FieldType = "str"
	FieldBool   FieldType = "bool"
)

// Field is a named input or output slot of a Signature.
type Field struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        FieldType `json:"type,omitempty"`
}

func (f Field) typ() FieldType {
	if f.Type == "" {
		return FieldString
	}
	return f.Type
}

// Signature declares what a predictor consumes and produces. Instructions
// tell the model what the transformation is for.
type Signature struct {
	Name         string  `json:"name,omitempty"`
	Instructions string  `json:"instructions"`
	Inputs       []Field `json:"inputs"`
	Outputs      []Field `json:"outputs"`
}

func (s Signature) InputNames() []string {
	return fieldNames(s.Inputs)
}

func (s Signature) OutputNames() []string {
	return fieldNames(s.Outputs)
}

// Validate checks that the signature has at least one input and output and
// that field names are unique.
func (s Signature) Validate() error {
	if len(s.Inputs) == 0 {
		return fmt.Errorf("signature %q has no input fields", s.Name)
	}
	if len(s.Outputs) == 0 {
		return fmt.Errorf("signature %q has no output fields", s.Name)
	}
	seen := map[string]bool{}
	for _, f := range append(append([]Field{}, s.Inputs...), s.Outputs...) {
		if f.Name == "" || strings.ContainsAny(f.Name, " \t\n[]#") {
			return fmt.Errorf("signature %q: invalid field name %q", s.Name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("signature %q: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Compatible reports whether other has the same field names and types.
func (s Signature) Compatible(other Signature) bool {
	return sameFields(s.Inputs, other.Inputs) && sameFields(s.Outputs, other.Outputs)
}

func sameFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].typ() != b[i].typ() {
			return false
		}
	}
	return true
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
