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

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crewtune/crewtune/gollm"
)

func TestPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}

	c.PrintMessages("Intercepted LLM Messages", []gollm.Message{
		{Role: gollm.RoleSystem, Content: "You are a planner."},
		{Role: gollm.RoleUser, Content: "Plan a trip."},
	})

	out := buf.String()
	for _, want := range []string{
		"Intercepted LLM Messages",
		"--- Message 1 (system) ---",
		"You are a planner.",
		"--- Message 2 (user) ---",
		"Plan a trip.",
		strings.Repeat("=", ruleWidth),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResultWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf)
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	if c.markdownRenderer != nil {
		t.Fatalf("markdown rendering should be off for non-terminal output")
	}

	c.PrintResult("Final Result", "# Report\n\n- item")
	if !strings.Contains(buf.String(), "# Report") {
		t.Errorf("expected raw markdown in output:\n%s", buf.String())
	}
}

func TestPrintResultMarkdown(t *testing.T) {
	var buf bytes.Buffer
	c, err := NewConsole(&buf, WithMarkdown(true))
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	c.PrintResult("Final Result", "# Report")
	if !strings.Contains(buf.String(), "Report") {
		t.Errorf("expected rendered heading in output:\n%s", buf.String())
	}
}
