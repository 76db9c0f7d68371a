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
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crewtune/crewtune/gollm"
)

// ErrMissingOutputField is returned when a completion lacks a declared output.
var ErrMissingOutputField = errors.New("missing output field")

const completedMarker = "completed"

var fieldHeader = regexp.MustCompile(`\[\[ ## (\w+) ## \]\]`)

// ChatAdapter renders a signature call as a chat and parses the reply. Each
// field is introduced by a "[[ ## name ## ]]" header.
type ChatAdapter struct{}

// Format builds the message list for one call: a system message describing
// the signature, one user/assistant pair per demo, then the actual inputs.
func (ChatAdapter) Format(sig Signature, demos []Example, inputs map[string]any) []gollm.Message {
	msgs := []gollm.Message{{Role: gollm.RoleSystem, Content: systemPrompt(sig)}}

	for _, demo := range demos {
		fields := demo.Fields()
		if !hasAll(fields, sig.InputNames()) || !hasAll(fields, sig.OutputNames()) {
			continue
		}
		msgs = append(msgs,
			gollm.Message{Role: gollm.RoleUser, Content: userPrompt(sig, fields, false)},
			gollm.Message{Role: gollm.RoleAssistant, Content: assistantPrompt(sig, fields)},
		)
	}

	msgs = append(msgs, gollm.Message{Role: gollm.RoleUser, Content: userPrompt(sig, inputs, true)})
	return msgs
}

// Parse extracts the output fields of sig from a completion.
func (ChatAdapter) Parse(sig Signature, completion string) (Prediction, error) {
	sections := map[string]string{}
	locs := fieldHeader.FindAllStringSubmatchIndex(completion, -1)
	for i, loc := range locs {
		name := completion[loc[2]:loc[3]]
		end := len(completion)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, dup := sections[name]; !dup {
			sections[name] = strings.TrimSpace(completion[loc[1]:end])
		}
	}

	pred := Prediction{}
	for _, f := range sig.Outputs {
		raw, ok := sections[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w %q in completion", ErrMissingOutputField, f.Name)
		}
		switch f.typ() {
		case FieldBool:
			b, err := parseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			pred[f.Name] = b
		default:
			pred[f.Name] = raw
		}
	}
	return pred, nil
}

func systemPrompt(sig Signature) string {
	var sb strings.Builder
	sb.WriteString("Your input fields are:\n")
	describeFields(&sb, sig.Inputs)
	sb.WriteString("Your output fields are:\n")
	describeFields(&sb, sig.Outputs)

	sb.WriteString("All interactions will be structured in the following way, with the appropriate values filled in.\n\n")
	for _, f := range sig.Inputs {
		fmt.Fprintf(&sb, "[[ ## %s ## ]]\n{%s}\n\n", f.Name, f.Name)
	}
	for _, f := range sig.Outputs {
		fmt.Fprintf(&sb, "[[ ## %s ## ]]\n{%s}", f.Name, f.Name)
		if f.typ() == FieldBool {
			sb.WriteString("        # note: the value you produce must be True or False")
		}
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "[[ ## %s ## ]]\n", completedMarker)

	sb.WriteString("In adhering to this structure, your objective is: \n")
	for _, line := range strings.Split(strings.TrimSpace(sig.Instructions), "\n") {
		sb.WriteString("        " + strings.TrimSpace(line) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeFields(sb *strings.Builder, fields []Field) {
	for i, f := range fields {
		fmt.Fprintf(sb, "%d. `%s` (%s)", i+1, f.Name, f.typ())
		if f.Description != "" {
			fmt.Fprintf(sb, ": %s", f.Description)
		}
		sb.WriteString("\n")
	}
}

func userPrompt(sig Signature, values map[string]any, final bool) string {
	var sb strings.Builder
	for _, f := range sig.Inputs {
		fmt.Fprintf(&sb, "[[ ## %s ## ]]\n%s\n\n", f.Name, formatValue(values[f.Name]))
	}
	if final {
		outputs := sig.Outputs
		fmt.Fprintf(&sb, "Respond with the corresponding output fields, starting with the field `[[ ## %s ## ]]`", outputs[0].Name)
		for _, f := range outputs[1:] {
			fmt.Fprintf(&sb, ", then `[[ ## %s ## ]]`", f.Name)
		}
		if outputs[0].typ() == FieldBool && len(outputs) == 1 {
			sb.WriteString(" (must be formatted as True or False)")
		}
		fmt.Fprintf(&sb, ", and then ending with the marker for `[[ ## %s ## ]]`.", completedMarker)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func assistantPrompt(sig Signature, values map[string]any) string {
	var sb strings.Builder
	for _, f := range sig.Outputs {
		fmt.Fprintf(&sb, "[[ ## %s ## ]]\n%s\n\n", f.Name, formatValue(values[f.Name]))
	}
	fmt.Fprintf(&sb, "[[ ## %s ## ]]", completedMarker)
	return sb.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}

// parseBool accepts True/False in any case, optionally followed by an
// explanation, as models tend to add one.
func parseBool(raw string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "`*\"' ")
	switch {
	case strings.HasPrefix(s, "true"), s == "yes":
		return true, nil
	case strings.HasPrefix(s, "false"), s == "no":
		return false, nil
	}
	return false, fmt.Errorf("cannot parse %q as a boolean", raw)
}

func hasAll(fields map[string]any, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			return false
		}
	}
	return true
}
