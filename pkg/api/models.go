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

package api

import (
	"strings"
	"time"
)

// AgentConfig is the declarative definition of a crew member.
type AgentConfig struct {
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
	// LLM is an optional "provider/model" override for this agent.
	LLM     string `json:"llm,omitempty"`
	Verbose bool   `json:"verbose,omitempty"`
}

// TaskConfig is the declarative definition of a unit of work.
type TaskConfig struct {
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
	Agent          string `json:"agent"`
	// OutputFile is where the task's final answer is written, relative to the output directory.
	OutputFile string `json:"output_file,omitempty"`
	// Context names earlier tasks whose outputs are given to this task.
	// When empty, all earlier outputs are used.
	Context []string `json:"context,omitempty"`
}

// TaskOutput is the result of executing one task.
type TaskOutput struct {
	Name           string `json:"name"`
	Agent          string `json:"agent"`
	Description    string `json:"description"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
	Raw            string `json:"raw"`
	OutputFile     string `json:"outputFile,omitempty"`
}

// Summary returns the first line of the output, for listings.
func (o *TaskOutput) Summary() string {
	line, _, _ := strings.Cut(strings.TrimSpace(o.Raw), "\n")
	return line
}

// CrewOutput is the result of a crew kickoff. Raw is the output of the last task.
type CrewOutput struct {
	Crew  string       `json:"crew"`
	Raw   string       `json:"raw"`
	Tasks []TaskOutput `json:"tasks"`
}

// StrategyKind names how LLM calls are intercepted.
type StrategyKind string

const (
	StrategyPassThrough StrategyKind = "passthrough"
	StrategyOptimize    StrategyKind = "optimize"
)

type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateDone    RunState = "done"
	RunStateFailed  RunState = "failed"
)

// RunMetadata describes one recorded crew run.
type RunMetadata struct {
	ID         string            `json:"id"`
	Crew       string            `json:"crew"`
	Inputs     map[string]string `json:"inputs,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	Model      string            `json:"model,omitempty"`
	Strategy   StrategyKind      `json:"strategy,omitempty"`
	State      RunState          `json:"state"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	FinishedAt time.Time         `json:"finishedAt,omitempty"`
}
