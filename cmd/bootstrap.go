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

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/pkg/llmstrategy"
	"github.com/crewtune/crewtune/pkg/optimizer"
	"github.com/crewtune/crewtune/pkg/promptimprover"
	"github.com/crewtune/crewtune/pkg/ui"
)

type bootstrapOptions struct {
	crewOptions
	Artifact    string
	DatasetPath string
	Retrain     bool
	Repeat      int
}

func buildBootstrapCommand(opt *Options) *cobra.Command {
	o := &bootstrapOptions{
		crewOptions: crewOptions{Crew: "travel", Inputs: map[string]string{}},
		Artifact:    "optimized_prompt_module.json",
		Repeat:      1,
	}
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Run a crew with every prompt rewritten by the optimized prompt improver",
		Long: "bootstrap loads the compiled prompt improver from --artifact, or compiles it with bootstrap " +
			"few-shot and saves it there, then runs the crew with every message rewritten before it reaches the model.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrapCommand(cmd.Context(), *opt, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.Crew, "crew", o.Crew, "built-in crew to run")
	f.StringVar(&o.CrewDir, "crew-dir", o.CrewDir, "directory with crew.yaml, agents.yaml and tasks.yaml (overrides --crew)")
	f.StringVar(&o.Topic, "topic", o.Topic, "value of the {topic} input")
	f.StringToStringVar(&o.Inputs, "input", o.Inputs, "additional crew inputs as key=value")
	f.StringVar(&o.Artifact, "artifact", o.Artifact, "path of the compiled prompt improver")
	f.StringVar(&o.DatasetPath, "dataset", o.DatasetPath, "training dataset YAML (default: built-in examples)")
	f.BoolVar(&o.Retrain, "retrain", o.Retrain, "recompile the prompt improver even if the artifact exists")
	f.IntVar(&o.Repeat, "repeat", o.Repeat, "number of times to run the crew, reusing the loaded prompt improver")
	return cmd
}

func loadDataset(v promptimprover.Variant, path string) (*promptimprover.Dataset, error) {
	if path == "" {
		return promptimprover.DefaultDataset(v)
	}
	return promptimprover.LoadDataset(v, path)
}

// newImproverLoader wires the prompt improver for variant v: the improver
// and judge models, the trainer and the artifact location.
func newImproverLoader(ctx context.Context, opt Options, stack *llmStack, console *ui.Console, v promptimprover.Variant, ds *promptimprover.Dataset, artifact string) (*promptimprover.Loader, error) {
	improverLM, err := stack.lm(ctx, opt.ImproverModel)
	if err != nil {
		return nil, err
	}
	judgeLM, err := stack.lm(ctx, opt.JudgeModel)
	if err != nil {
		return nil, err
	}

	trainer := promptimprover.NewTrainer(ds, promptimprover.NewMetric(v, judgeLM))
	trainer.Progress = func(done, total int) {
		console.Printf("Evaluating example %d/%d...\n", done, total)
	}

	return &promptimprover.Loader{
		ArtifactPath: artifact,
		New: func() *promptimprover.Module {
			return promptimprover.NewModule(v, improverLM)
		},
		Train: func(ctx context.Context, student *promptimprover.Module) (*promptimprover.Module, error) {
			console.Printf("Starting module optimization with bootstrapping...\n")
			m, report, err := trainer.Compile(ctx, student)
			if err != nil {
				return nil, err
			}
			console.Printf("Module optimized successfully! (%d of %d training examples bootstrapped, %d errors)\n",
				report.Succeeded, report.Attempted, report.Errors)
			return m, nil
		},
		Evaluate: func(ctx context.Context, m *promptimprover.Module) error {
			if artifact != "" {
				console.Printf("Optimized module saved to: %s\n", artifact)
			}
			res, err := trainer.Evaluate(ctx, m)
			if err != nil {
				return err
			}
			if res != nil {
				console.Printf("\nAverage score on the development set: %.2f\n", res.Score)
			}
			return nil
		},
		Metadata: optimizer.Metadata{
			Optimizer: "BootstrapFewShot",
			Model:     opt.ImproverModel,
			Extra:     map[string]string{"variant": v.Name, "judge": opt.JudgeModel},
		},
	}, nil
}

func runBootstrapCommand(ctx context.Context, opt Options, o *bootstrapOptions) error {
	def, err := loadCrew(o.Crew, o.CrewDir)
	if err != nil {
		return err
	}
	refs := append(crewModelRefs(def, opt.ModelID), opt.ImproverModel, opt.JudgeModel)
	if err := requireCredentials(providersOf(opt.ProviderID, refs...)...); err != nil {
		return err
	}

	ds, err := loadDataset(promptimprover.CrewAI, o.DatasetPath)
	if err != nil {
		return err
	}

	ctx, closeJournal, err := withJournal(ctx, opt)
	if err != nil {
		return err
	}
	defer closeJournal()

	console, err := newConsole()
	if err != nil {
		return err
	}

	stack := newLLMStack(opt)
	defer stack.Close()

	loader, err := newImproverLoader(ctx, opt, stack, console, promptimprover.CrewAI, ds, o.Artifact)
	if err != nil {
		return err
	}
	loader.Retrain = o.Retrain

	inputs := o.inputs()
	for i := 0; i < max(o.Repeat, 1); i++ {
		module, source, err := loader.Get(ctx)
		if err != nil {
			return fmt.Errorf("preparing prompt improver: %w", err)
		}
		switch source {
		case promptimprover.SourceArtifact:
			console.Printf("Loaded optimized module from %s\n", o.Artifact)
		case promptimprover.SourceMemory:
			console.Printf("Reusing cached prompt improver...\n")
		}

		r := &crewRun{
			opt:      opt,
			stack:    stack,
			console:  console,
			def:      def,
			strategy: &llmstrategy.Optimize{Improver: module, Printer: console},
		}
		topic := r.topic(inputs)
		console.Printf("\nKicking off %s with topic: %s (using optimized prompts)...\n", def.Config.Name, topic)
		if _, err := r.kickoff(ctx, inputs); err != nil {
			return fmt.Errorf("running crew: %w", err)
		}
	}
	return nil
}
