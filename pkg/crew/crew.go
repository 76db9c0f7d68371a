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

// Package crew runs a small crew of role-playing agents through a
// sequence of tasks, feeding each task the outputs of the ones before it.
package crew

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/api"
	"github.com/crewtune/crewtune/pkg/journal"
)

// Caller sends one message list to a model. *llmstrategy.LLM implements it.
type Caller interface {
	Call(ctx context.Context, input any) (string, error)
}

// LLMFactory builds the caller used by an agent. modelRef is the agent's
// "provider/model", falling back to the crew default.
type LLMFactory func(ctx context.Context, agent string, modelRef string) (Caller, error)

type Printer interface {
	Printf(format string, args ...any)
}

type Crew struct {
	Definition *Definition
	NewLLM     LLMFactory

	// OutputDir is the directory task output files are written under.
	// Empty means the working directory.
	OutputDir string

	// Printer receives the narrative of verbose agents. Optional.
	Printer Printer

	// OnTaskComplete is called after every task; an error stops the run.
	OnTaskComplete func(out *api.TaskOutput) error

	now func() time.Time
}

// ResolveInputs merges the definition defaults with inputs and fills
// current_year when it is not given.
func (c *Crew) ResolveInputs(inputs map[string]string) map[string]string {
	resolved := map[string]string{}
	maps.Copy(resolved, c.Definition.Config.Inputs)
	maps.Copy(resolved, inputs)
	if _, ok := resolved["current_year"]; !ok {
		now := time.Now
		if c.now != nil {
			now = c.now
		}
		resolved["current_year"] = strconv.Itoa(now().Year())
	}
	return resolved
}

// Kickoff runs every task in order and returns their outputs. The crew's
// result is the output of the last task.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*api.CrewOutput, error) {
	log := klog.FromContext(ctx)
	def := c.Definition
	if def == nil {
		return nil, errors.New("crew has no definition")
	}
	if c.NewLLM == nil {
		return nil, errors.New("crew has no LLM factory")
	}

	resolved := c.ResolveInputs(inputs)

	// Interpolate everything up front so a missing input fails before any
	// model is called.
	agents := map[string]api.AgentConfig{}
	for name, a := range def.Agents {
		ia, err := interpolateAgent(a, resolved)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		agents[name] = ia
	}
	tasks := make([]api.TaskConfig, len(def.Config.Tasks))
	for i, name := range def.Config.Tasks {
		it, err := interpolateTask(def.Tasks[name], resolved)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		tasks[i] = it
	}

	log.Info("Kicking off crew", "crew", def.Config.Name, "tasks", len(tasks))

	callers := map[string]Caller{}
	out := &api.CrewOutput{Crew: def.Config.Name}
	outputs := map[string]string{}

	for i, task := range tasks {
		name := def.Config.Tasks[i]
		agent := agents[task.Agent]

		caller, ok := callers[task.Agent]
		if !ok {
			modelRef := agent.LLM
			if modelRef == "" {
				modelRef = def.Config.LLM
			}
			var err error
			caller, err = c.NewLLM(ctx, task.Agent, modelRef)
			if err != nil {
				return nil, fmt.Errorf("creating LLM for agent %q: %w", task.Agent, err)
			}
			callers[task.Agent] = caller
		}

		taskContext := c.taskContext(task, out.Tasks, outputs)
		if agent.Verbose {
			c.printf("\n# Agent: %s\n## Task: %s\n", agent.Role, task.Description)
		}
		journal.Record(ctx, journal.ActionTaskStart, "", map[string]any{"task": name, "agent": task.Agent})

		response, err := caller.Call(ctx, BuildMessages(agent, task, taskContext))
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		answer := ExtractFinalAnswer(response)
		outputs[name] = answer

		if agent.Verbose {
			c.printf("\n# Agent: %s\n## Final Answer:\n%s\n", agent.Role, answer)
		}

		taskOut := api.TaskOutput{
			Name:           name,
			Agent:          task.Agent,
			Description:    task.Description,
			ExpectedOutput: task.ExpectedOutput,
			Raw:            answer,
		}
		if task.OutputFile != "" {
			p, err := c.writeOutput(task.OutputFile, answer)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", name, err)
			}
			taskOut.OutputFile = p
		}
		journal.Record(ctx, journal.ActionTaskComplete, "", map[string]any{"task": name, "agent": task.Agent, "outputFile": taskOut.OutputFile})
		log.V(1).Info("Task complete", "task", name, "summary", taskOut.Summary())

		if c.OnTaskComplete != nil {
			if err := c.OnTaskComplete(&taskOut); err != nil {
				return nil, err
			}
		}
		out.Tasks = append(out.Tasks, taskOut)
		out.Raw = answer
	}
	return out, nil
}

// taskContext returns the outputs the task should see: the named context
// tasks, or every earlier task when none are named.
func (c *Crew) taskContext(task api.TaskConfig, done []api.TaskOutput, outputs map[string]string) string {
	var parts []string
	if len(task.Context) > 0 {
		for _, name := range task.Context {
			parts = append(parts, outputs[name])
		}
	} else {
		for _, t := range done {
			parts = append(parts, t.Raw)
		}
	}
	return strings.Join(parts, contextSeparator)
}

func (c *Crew) writeOutput(file, content string) (string, error) {
	p := file
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.OutputDir, file)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing output file: %w", err)
	}
	return p, nil
}

func (c *Crew) printf(format string, args ...any) {
	if c.Printer != nil {
		c.Printer.Printf(format, args...)
	}
}
