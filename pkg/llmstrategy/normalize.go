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

package llmstrategy

import (
	"fmt"

	"github.com/crewtune/crewtune/gollm"
)

// NormalizeMessages converts the accepted LLM-call inputs into a message
// list. A bare string becomes a single user message; a missing role
// defaults to user. The input is never modified.
func NormalizeMessages(input any) ([]gollm.Message, error) {
	switch v := input.(type) {
	case string:
		return []gollm.Message{{Role: gollm.RoleUser, Content: v}}, nil
	case gollm.Message:
		return []gollm.Message{withDefaultRole(v)}, nil
	case []gollm.Message:
		out := make([]gollm.Message, len(v))
		for i, m := range v {
			out[i] = withDefaultRole(m)
		}
		return out, nil
	case []map[string]string:
		out := make([]gollm.Message, len(v))
		for i, m := range v {
			out[i] = withDefaultRole(gollm.Message{Role: gollm.Role(m["role"]), Content: m["content"]})
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("no messages given")
	default:
		return nil, fmt.Errorf("unsupported message input of type %T", input)
	}
}

func withDefaultRole(m gollm.Message) gollm.Message {
	if m.Role == "" {
		m.Role = gollm.RoleUser
	}
	return m
}
