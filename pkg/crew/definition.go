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
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/crewtune/crewtune/pkg/api"
)

//go:embed crews
var builtinFS embed.FS

type Process string

const (
	ProcessSequential   Process = "sequential"
	ProcessHierarchical Process = "hierarchical"
)

// Config is the content of crew.yaml.
type Config struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Process     Process `json:"process,omitempty"`
	// LLM is the default "provider/model" for agents that do not set one.
	LLM string `json:"llm,omitempty"`
	// Agents and Tasks give the execution order.
	Agents []string `json:"agents"`
	Tasks  []string `json:"tasks"`
	// Inputs are defaults for placeholders, overridden at kickoff.
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Definition is a crew as loaded from its three YAML files.
type Definition struct {
	Config Config
	Agents map[string]api.AgentConfig
	Tasks  map[string]api.TaskConfig
}

// BuiltinNames lists the crews shipped with the binary.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(builtinFS, "crews")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// LoadBuiltin loads one of the crews shipped with the binary.
func LoadBuiltin(name string) (*Definition, error) {
	if !slices.Contains(BuiltinNames(), name) {
		return nil, fmt.Errorf("unknown crew %q (available: %v)", name, BuiltinNames())
	}
	return Load(builtinFS, path.Join("crews", name))
}

// LoadDir loads a crew from a directory on disk.
func LoadDir(dir string) (*Definition, error) {
	return Load(os.DirFS(dir), ".")
}

// Load reads crew.yaml, agents.yaml and tasks.yaml from dir in fsys and
// validates the result.
func Load(fsys fs.FS, dir string) (*Definition, error) {
	def := &Definition{}
	if err := readYAML(fsys, path.Join(dir, "crew.yaml"), &def.Config); err != nil {
		return nil, err
	}
	if err := readYAML(fsys, path.Join(dir, "agents.yaml"), &def.Agents); err != nil {
		return nil, err
	}
	if err := readYAML(fsys, path.Join(dir, "tasks.yaml"), &def.Tasks); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func readYAML(fsys fs.FS, name string, into any) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading crew definition: %w", err)
	}
	if err := yaml.Unmarshal(b, into); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// Validate checks that the definition can be run: every referenced agent
// and task exists, tasks are assigned to agents of the crew, and context
// only refers to earlier tasks.
func (d *Definition) Validate() error {
	switch d.Config.Process {
	case "", ProcessSequential:
	case ProcessHierarchical:
		return fmt.Errorf("crew %q: hierarchical process is not supported", d.Config.Name)
	default:
		return fmt.Errorf("crew %q: unknown process %q", d.Config.Name, d.Config.Process)
	}

	if len(d.Config.Tasks) == 0 {
		return fmt.Errorf("crew %q has no tasks", d.Config.Name)
	}
	for _, name := range d.Config.Agents {
		a, ok := d.Agents[name]
		if !ok {
			return fmt.Errorf("crew %q: agent %q is not defined", d.Config.Name, name)
		}
		if a.Role == "" || a.Goal == "" {
			return fmt.Errorf("agent %q: role and goal are required", name)
		}
	}

	seen := map[string]bool{}
	for _, name := range d.Config.Tasks {
		t, ok := d.Tasks[name]
		if !ok {
			return fmt.Errorf("crew %q: task %q is not defined", d.Config.Name, name)
		}
		if t.Description == "" || t.ExpectedOutput == "" {
			return fmt.Errorf("task %q: description and expected_output are required", name)
		}
		if _, ok := d.Agents[t.Agent]; !ok {
			return fmt.Errorf("task %q: unknown agent %q", name, t.Agent)
		}
		if !slices.Contains(d.Config.Agents, t.Agent) {
			return fmt.Errorf("task %q: agent %q is not listed in crew %q", name, t.Agent, d.Config.Name)
		}
		for _, c := range t.Context {
			if !seen[c] {
				return fmt.Errorf("task %q: context task %q must run before it", name, c)
			}
		}
		seen[name] = true
	}
	return nil
}
