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

package gollm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestToAnthropicMessages(t *testing.T) {
	tests := []struct {
		name       string
		input      []Message
		wantRoles  []anthropic.MessageParamRole
		wantBlocks []int
	}{
		{
			name:       "single user message",
			input:      []Message{{Role: RoleUser, Content: "hi"}},
			wantRoles:  []anthropic.MessageParamRole{anthropic.MessageParamRoleUser},
			wantBlocks: []int{1},
		},
		{
			name: "consecutive user turns are merged",
			input: []Message{
				{Role: RoleUser, Content: "a"},
				{Role: RoleUser, Content: "b"},
				{Role: RoleAssistant, Content: "c"},
				{Role: RoleUser, Content: "d"},
			},
			wantRoles: []anthropic.MessageParamRole{
				anthropic.MessageParamRoleUser,
				anthropic.MessageParamRoleAssistant,
				anthropic.MessageParamRoleUser,
			},
			wantBlocks: []int{2, 1, 1},
		},
		{
			name:       "unknown roles are sent as user",
			input:      []Message{{Role: "tool", Content: "a"}, {Role: RoleUser, Content: "b"}},
			wantRoles:  []anthropic.MessageParamRole{anthropic.MessageParamRoleUser},
			wantBlocks: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toAnthropicMessages(tt.input)
			if len(got) != len(tt.wantRoles) {
				t.Fatalf("got %d messages, want %d", len(got), len(tt.wantRoles))
			}
			for i := range got {
				if got[i].Role != tt.wantRoles[i] {
					t.Errorf("message %d: role %q, want %q", i, got[i].Role, tt.wantRoles[i])
				}
				if len(got[i].Content) != tt.wantBlocks[i] {
					t.Errorf("message %d: %d blocks, want %d", i, len(got[i].Content), tt.wantBlocks[i])
				}
			}
		})
	}
}
