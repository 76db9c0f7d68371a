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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/internal/mocks"
	"github.com/crewtune/crewtune/pkg/api"
	"github.com/crewtune/crewtune/pkg/llmstrategy"
)

func TestBuiltinCrews(t *testing.T) {
	if diff := cmp.Diff([]string{"opportunity", "startup", "travel"}, BuiltinNames()); diff != "" {
		t.Fatalf("builtin crews mismatch (-want +got):\n%s", diff)
	}
	for _, name := range BuiltinNames() {
		def, err := LoadBuiltin(name)
		if err != nil {
			t.Errorf("LoadBuiltin(%q): %v", name, err)
			continue
		}
		if len(def.Config.Tasks) != 2 || len(def.Config.Agents) != 2 {
			t.Errorf("crew %q: %d agents / %d tasks, want 2 / 2", name, len(def.Config.Agents), len(def.Config.Tasks))
		}
		if def.Config.Inputs["topic"] == "" {
			t.Errorf("crew %q has no default topic", name)
		}
	}

	if _, err := LoadBuiltin("nope"); err == nil {
		t.Errorf("expected an error for an unknown crew")
	}
}

func testFS(crewYAML string) fstest.MapFS {
	return fstest.MapFS{
		"c/crew.yaml": {Data: []byte(crewYAML)},
		"c/agents.yaml": {Data: []byte(`
writer:
  role: Writer on {topic}
  goal: Write about {topic}
  backstory: Loves {topic}.
  verbose: true
editor:
  role: Editor
  goal: Polish the draft
  backstory: Careful.
  llm: openai/gpt-4.1
`)},
		"c/tasks.yaml": {Data: []byte(`
draft:
  description: Draft a note on {topic} for {current_year}.
  expected_output: A short note.
  agent: writer
  output_file: out/draft.md
polish:
  description: Polish the draft.
  expected_output: A polished note.
  agent: editor
  output_file: final.md
`)},
	}
}

const sequentialCrew = `
name: Notes
process: sequential
llm: anthropic/claude-sonnet-4-20250514
agents: [writer, editor]
tasks: [draft, polish]
inputs:
  topic: tea
`

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		crew    string
		wantErr string
	}{
		{name: "valid", crew: sequentialCrew},
		{name: "hierarchical", crew: "name: x\nprocess: hierarchical\nagents: [writer]\ntasks: [draft]\n", wantErr: "hierarchical"},
		{name: "unknown process", crew: "name: x\nprocess: parallel\ntasks: [draft]\n", wantErr: "unknown process"},
		{name: "unknown task", crew: "name: x\nagents: [writer]\ntasks: [review]\n", wantErr: `task "review" is not defined`},
		{name: "no tasks", crew: "name: x\nagents: [writer]\n", wantErr: "no tasks"},
		{name: "task agent not in crew", crew: "name: x\nagents: [writer]\ntasks: [draft, polish]\n", wantErr: `agent "editor" is not listed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(testFS(tt.crew), "c")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsForwardContext(t *testing.T) {
	fsys := testFS(sequentialCrew)
	fsys["c/tasks.yaml"] = &fstest.MapFile{Data: []byte(`
draft:
  description: d
  expected_output: e
  agent: writer
  context: [polish]
polish:
  description: d
  expected_output: e
  agent: editor
`)}
	if _, err := Load(fsys, "c"); err == nil || !strings.Contains(err.Error(), "must run before") {
		t.Errorf("Load error = %v, want a context ordering error", err)
	}
}

func TestInterpolate(t *testing.T) {
	inputs := map[string]string{"topic": "tea", "current_year": "2025"}

	got, err := Interpolate("  {topic} trends in {current_year}, json like { \"a\": 1 } stays\n", inputs)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if want := `tea trends in 2025, json like { "a": 1 } stays`; got != want {
		t.Errorf("Interpolate = %q, want %q", got, want)
	}

	_, err = Interpolate("for {audience}", inputs)
	if !errors.Is(err, ErrMissingInput) || !strings.Contains(err.Error(), "audience") {
		t.Errorf("Interpolate error = %v, want ErrMissingInput naming audience", err)
	}
}

func TestBuildMessages(t *testing.T) {
	agent := api.AgentConfig{Role: "Travel Planner", Goal: "Plan trips", Backstory: "Well travelled."}
	task := api.TaskConfig{Description: "Plan 5 days in Amsterdam.", ExpectedOutput: "A day-by-day plan."}

	msgs := BuildMessages(agent, task, "")
	if len(msgs) != 2 || msgs[0].Role != gollm.RoleSystem || msgs[1].Role != gollm.RoleUser {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	for _, want := range []string{"You are Travel Planner. Well travelled.", "Your personal goal is: Plan trips", "Final Answer:"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Errorf("system message missing %q:\n%s", want, msgs[0].Content)
		}
	}
	for _, want := range []string{"Current Task: Plan 5 days in Amsterdam.", "expected criteria for your final answer: A day-by-day plan.", "Begin!"} {
		if !strings.Contains(msgs[1].Content, want) {
			t.Errorf("user message missing %q:\n%s", want, msgs[1].Content)
		}
	}
	if strings.Contains(msgs[1].Content, "context you're working with") {
		t.Errorf("user message should not mention context when there is none")
	}

	withContext := BuildMessages(agent, task, "Day 1: canals")
	if !strings.Contains(withContext[1].Content, "This is the context you're working with:\nDay 1: canals") {
		t.Errorf("context not rendered:\n%s", withContext[1].Content)
	}
}

func TestExtractFinalAnswer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Thought: I now can give a great answer\nFinal Answer: # Plan\n- day 1", want: "# Plan\n- day 1"},
		{in: "Final Answer: draft\nThought: again\nFinal Answer: final", want: "final"},
		{in: "just text", want: "just text"},
		{in: "Final Answer:\n```markdown\n# Report\n```", want: "# Report"},
	}
	for _, tt := range tests {
		if got := ExtractFinalAnswer(tt.in); got != tt.want {
			t.Errorf("ExtractFinalAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeCaller struct {
	agent    string
	requests *[][]gollm.Message
}

func (f *fakeCaller) Call(ctx context.Context, input any) (string, error) {
	msgs := input.([]gollm.Message)
	*f.requests = append(*f.requests, msgs)
	return "Thought: done\nFinal Answer: output of " + f.agent, nil
}

type bufPrinter struct{ strings.Builder }

func (p *bufPrinter) Printf(format string, args ...any) {
	p.WriteString(strings.TrimSpace(format))
}

func TestKickoff(t *testing.T) {
	def, err := Load(testFS(sequentialCrew), "c")
	if err != nil {
		t.Fatal(err)
	}

	var requests [][]gollm.Message
	var refs []string
	outDir := t.TempDir()
	var completed []string
	printer := &bufPrinter{}

	c := &Crew{
		Definition: def,
		OutputDir:  outDir,
		Printer:    printer,
		NewLLM: func(ctx context.Context, agent, modelRef string) (Caller, error) {
			refs = append(refs, agent+"="+modelRef)
			return &fakeCaller{agent: agent, requests: &requests}, nil
		},
		OnTaskComplete: func(out *api.TaskOutput) error {
			completed = append(completed, out.Name)
			return nil
		},
		now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}

	out, err := c.Kickoff(context.Background(), map[string]string{"topic": "coffee"})
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}

	if diff := cmp.Diff([]string{"writer=anthropic/claude-sonnet-4-20250514", "editor=openai/gpt-4.1"}, refs); diff != "" {
		t.Errorf("model refs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"draft", "polish"}, completed); diff != "" {
		t.Errorf("completed tasks mismatch (-want +got):\n%s", diff)
	}
	if out.Raw != "output of editor" || len(out.Tasks) != 2 {
		t.Errorf("unexpected crew output %+v", out)
	}

	if !strings.Contains(requests[0][0].Content, "You are Writer on coffee.") {
		t.Errorf("inputs not interpolated into agent:\n%s", requests[0][0].Content)
	}
	if !strings.Contains(requests[0][1].Content, "Draft a note on coffee for 2025.") {
		t.Errorf("current_year not filled:\n%s", requests[0][1].Content)
	}
	if !strings.Contains(requests[1][1].Content, "context you're working with:\noutput of writer") {
		t.Errorf("previous output not passed as context:\n%s", requests[1][1].Content)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "out", "draft.md"))
	if err != nil || string(b) != "output of writer" {
		t.Errorf("draft.md = %q, %v", b, err)
	}
	if out.Tasks[1].OutputFile != filepath.Join(outDir, "final.md") {
		t.Errorf("output file %q", out.Tasks[1].OutputFile)
	}
	if !strings.Contains(printer.String(), "# Agent") {
		t.Errorf("verbose agent narrative not printed")
	}
}

func TestKickoffMissingInput(t *testing.T) {
	fsys := testFS(strings.Replace(sequentialCrew, "  topic: tea\n", "", 1))
	def, err := Load(fsys, "c")
	if err != nil {
		t.Fatal(err)
	}
	c := &Crew{
		Definition: def,
		NewLLM: func(context.Context, string, string) (Caller, error) {
			t.Fatalf("no model should be created when inputs are missing")
			return nil, nil
		},
	}
	if _, err := c.Kickoff(context.Background(), nil); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Kickoff error = %v, want ErrMissingInput", err)
	}
}

func TestKickoffThroughInterceptor(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *gollm.CompletionRequest) (gollm.CompletionResponse, error) {
			if len(req.Messages) != 2 || req.Messages[0].Role != gollm.RoleSystem {
				t.Errorf("unexpected forwarded messages %+v", req.Messages)
			}
			return gollm.NewCompletionResponse("Final Answer: ok", nil), nil
		}).Times(2)

	def, err := Load(testFS(sequentialCrew), "c")
	if err != nil {
		t.Fatal(err)
	}
	c := &Crew{
		Definition: def,
		OutputDir:  t.TempDir(),
		NewLLM: func(ctx context.Context, agent, modelRef string) (Caller, error) {
			_, model := gollm.ParseModelRef(modelRef, "anthropic")
			return &llmstrategy.LLM{Client: client, Model: model, Strategy: &llmstrategy.PassThrough{}}, nil
		},
	}
	out, err := c.Kickoff(context.Background(), nil)
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if out.Raw != "ok" {
		t.Errorf("crew result %q, want ok", out.Raw)
	}
}

func TestKickoffStopsOnModelError(t *testing.T) {
	def, err := Load(testFS(sequentialCrew), "c")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("overloaded")
	c := &Crew{
		Definition: def,
		OutputDir:  t.TempDir(),
		NewLLM: func(context.Context, string, string) (Caller, error) {
			return callerFunc(func(context.Context, any) (string, error) { return "", boom }), nil
		},
	}
	if _, err := c.Kickoff(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("Kickoff error = %v, want %v", err, boom)
	}
}

type callerFunc func(ctx context.Context, input any) (string, error)

func (f callerFunc) Call(ctx context.Context, input any) (string, error) { return f(ctx, input) }
