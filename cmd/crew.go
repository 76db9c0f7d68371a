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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/pkg/llmstrategy"
)

type crewOptions struct {
	Crew    string
	CrewDir string
	Topic   string
	Inputs  map[string]string
}

func buildCrewCommand(opt *Options) *cobra.Command {
	o := &crewOptions{Crew: "opportunity", Inputs: map[string]string{}}
	cmd := &cobra.Command{
		Use:   "crew",
		Short: "Run a crew, printing every message list sent to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrewCommand(cmd, *opt, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.Crew, "crew", o.Crew, "built-in crew to run")
	f.StringVar(&o.CrewDir, "crew-dir", o.CrewDir, "directory with crew.yaml, agents.yaml and tasks.yaml (overrides --crew)")
	f.StringVar(&o.Topic, "topic", o.Topic, "value of the {topic} input")
	f.StringToStringVar(&o.Inputs, "input", o.Inputs, "additional crew inputs as key=value")
	return cmd
}

func (o *crewOptions) inputs() map[string]string {
	inputs := map[string]string{}
	for k, v := range o.Inputs {
		inputs[k] = v
	}
	if o.Topic != "" {
		inputs["topic"] = o.Topic
	}
	return inputs
}

func runCrewCommand(cmd *cobra.Command, opt Options, o *crewOptions) error {
	ctx := cmd.Context()

	def, err := loadCrew(o.Crew, o.CrewDir)
	if err != nil {
		return err
	}
	if err := requireCredentials(providersOf(opt.ProviderID, crewModelRefs(def, opt.ModelID)...)...); err != nil {
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

	console.Printf("Launching %s...\n", def.Config.Name)
	r := &crewRun{
		opt:      opt,
		stack:    stack,
		console:  console,
		def:      def,
		strategy: &llmstrategy.PassThrough{Printer: console},
	}
	if _, err := r.kickoff(ctx, o.inputs()); err != nil {
		return fmt.Errorf("running crew: %w", err)
	}
	return nil
}
