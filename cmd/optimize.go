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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/promptimprover"
)

type optimizeOptions struct {
	SamplePath  string
	DatasetPath string
	Artifact    string
	History     int
}

func buildOptimizeCommand(opt *Options) *cobra.Command {
	o := &optimizeOptions{History: 1}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compile the prompt improver, score it on the dev set and rewrite a sample prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimizeCommand(cmd.Context(), *opt, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.SamplePath, "sample-file", o.SamplePath, "file with the prompt to improve (default: built-in sample)")
	f.StringVar(&o.DatasetPath, "dataset", o.DatasetPath, "training dataset YAML (default: built-in examples)")
	f.StringVar(&o.Artifact, "artifact", o.Artifact, "save the compiled program to this path")
	f.IntVar(&o.History, "history", o.History, "number of recent model calls of the improver to print at the end")
	return cmd
}

func runOptimizeCommand(ctx context.Context, opt Options, o *optimizeOptions) error {
	if err := requireCredentials(providersOf(opt.ProviderID, opt.ImproverModel, opt.JudgeModel)...); err != nil {
		return err
	}

	sample := promptimprover.SamplePrompt()
	if o.SamplePath != "" {
		b, err := os.ReadFile(o.SamplePath)
		if err != nil {
			return fmt.Errorf("reading sample prompt: %w", err)
		}
		sample = string(b)
	}
	if strings.TrimSpace(sample) == "" {
		return fmt.Errorf("sample prompt is empty")
	}

	ds, err := loadDataset(promptimprover.Intro, o.DatasetPath)
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

	loader, err := newImproverLoader(ctx, opt, stack, console, promptimprover.Intro, ds, o.Artifact)
	if err != nil {
		return err
	}
	// This command always compiles; --artifact only controls saving.
	loader.Retrain = true

	module, _, err := loader.Get(ctx)
	if err != nil {
		return fmt.Errorf("compiling prompt improver: %w", err)
	}

	improved, err := module.Improve(ctx, sample)
	if err != nil {
		return fmt.Errorf("improving sample prompt: %w", err)
	}
	console.PrintResult("Optimized Prompt Generated for New Example", improved)

	if o.History > 0 {
		provider, _ := gollm.ParseModelRef(opt.ImproverModel, opt.ProviderID)
		history, err := stack.client(ctx, provider)
		if err != nil {
			return err
		}
		console.Printf("\n--- Prompt History for Final Prediction ---\n")
		if err := history.InspectHistory(os.Stdout, o.History); err != nil {
			return fmt.Errorf("printing history: %w", err)
		}
	}
	return nil
}
