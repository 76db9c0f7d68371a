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

package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/api"
	"github.com/crewtune/crewtune/pkg/crew"
	"github.com/crewtune/crewtune/pkg/journal"
	"github.com/crewtune/crewtune/pkg/llmstrategy"
	"github.com/crewtune/crewtune/pkg/runs"
	"github.com/crewtune/crewtune/pkg/ui"
)

// withJournal attaches the trace recorder selected by opt to ctx. The
// returned func closes it.
func withJournal(ctx context.Context, opt Options) (context.Context, func(), error) {
	if opt.TracePath == "" {
		return journal.ContextWithRecorder(ctx, &journal.LogRecorder{}), func() {}, nil
	}
	recorder, err := journal.NewFileRecorder(opt.TracePath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace recorder: %w", err)
	}
	klog.V(1).InfoS("Writing trace", "path", opt.TracePath)
	return journal.ContextWithRecorder(ctx, recorder), func() { recorder.Close() }, nil
}

func newConsole() (*ui.Console, error) {
	return ui.NewConsole(os.Stdout)
}

// loadCrew loads a crew from dir when given, else a built-in crew by name.
func loadCrew(name, dir string) (*crew.Definition, error) {
	if dir != "" {
		return crew.LoadDir(dir)
	}
	return crew.LoadBuiltin(name)
}

// crewModelRefs lists the model references the crew will call.
func crewModelRefs(def *crew.Definition, override string) []string {
	if override != "" {
		return []string{override}
	}
	refs := []string{def.Config.LLM}
	for _, name := range slices.Sorted(maps.Keys(def.Agents)) {
		refs = append(refs, def.Agents[name].LLM)
	}
	return refs
}

type crewRun struct {
	opt      Options
	stack    *llmStack
	console  *ui.Console
	def      *crew.Definition
	strategy llmstrategy.Strategy
}

// kickoff runs the crew with every agent's calls routed through the
// strategy, recording the run when enabled.
func (r *crewRun) kickoff(ctx context.Context, inputs map[string]string) (*api.CrewOutput, error) {
	c := &crew.Crew{
		Definition: r.def,
		OutputDir:  r.opt.OutputDir,
		Printer:    r.console,
		NewLLM: func(ctx context.Context, agent, modelRef string) (crew.Caller, error) {
			if r.opt.ModelID != "" {
				modelRef = r.opt.ModelID
			}
			provider, model := gollm.ParseModelRef(modelRef, r.opt.ProviderID)
			client, err := r.stack.client(ctx, provider)
			if err != nil {
				return nil, err
			}
			klog.V(1).InfoS("Agent model", "agent", agent, "provider", provider, "model", model)
			return &llmstrategy.LLM{
				Client:    client,
				Model:     model,
				Strategy:  r.strategy,
				MaxTokens: r.opt.MaxTokens,
			}, nil
		},
	}

	var record *runs.Run
	if r.opt.RecordRun {
		manager, err := runs.NewManager()
		if err != nil {
			return nil, fmt.Errorf("failed to create run manager: %w", err)
		}
		ref := r.opt.ModelID
		if ref == "" {
			ref = r.def.Config.LLM
		}
		provider, model := gollm.ParseModelRef(ref, r.opt.ProviderID)
		record, err = manager.NewRun(api.RunMetadata{
			Crew:     r.def.Config.Name,
			Inputs:   c.ResolveInputs(inputs),
			Provider: provider,
			Model:    model,
			Strategy: r.strategy.Kind(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		c.OnTaskComplete = record.AddTaskOutput
		klog.InfoS("Recording run", "id", record.ID)
	}

	out, err := c.Kickoff(ctx, inputs)
	if record != nil {
		if ferr := record.Finish(err); ferr != nil {
			klog.Warningf("failed to finish run %s: %v", record.ID, ferr)
		}
	}
	if err != nil {
		return nil, err
	}

	r.console.PrintResult("Final Result", out.Raw)
	if record != nil {
		r.console.Printf("Run recorded as %s\n", record.ID)
	}
	return out, nil
}

// topic returns the {topic} input the crew will run with.
func (r *crewRun) topic(inputs map[string]string) string {
	if t, ok := inputs["topic"]; ok {
		return t
	}
	return r.def.Config.Inputs["topic"]
}
