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

package crew

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crewtune/crewtune/pkg/api"
)

var ErrMissingInput = errors.New("missing input")

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} placeholders in s with inputs[name].
func Interpolate(s string, inputs map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := inputs[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w %q", ErrMissingInput, missing[0])
	}
	return strings.TrimSpace(out), nil
}

func interpolateAgent(a api.AgentConfig, inputs map[string]string) (api.AgentConfig, error) {
	var err error
	for _, field := range []*string{&a.Role, &a.Goal, &a.Backstory} {
		if *field, err = Interpolate(*field, inputs); err != nil {
			return a, err
		}
	}
	return a, nil
}

func interpolateTask(t api.TaskConfig, inputs map[string]string) (api.TaskConfig, error) {
	var err error
	for _, field := range []*string{&t.Description, &t.ExpectedOutput, &t.OutputFile} {
		if *field, err = Interpolate(*field, inputs); err != nil {
			return t, err
		}
	}
	return t, nil
}
