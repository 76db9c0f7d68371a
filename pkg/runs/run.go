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

package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/crewtune/crewtune/pkg/api"
)

const (
	metadataFileName = "metadata.yaml"
	outputsFileName  = "outputs.jsonl"
)

type Run struct {
	ID   string
	Path string
	mu   sync.Mutex
}

func (r *Run) MetadataPath() string {
	return filepath.Join(r.Path, metadataFileName)
}

func (r *Run) OutputsPath() string {
	return filepath.Join(r.Path, outputsFileName)
}

func (r *Run) LoadMetadata() (*api.RunMetadata, error) {
	b, err := os.ReadFile(r.MetadataPath())
	if err != nil {
		return nil, err
	}
	var m api.RunMetadata
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parsing run metadata: %w", err)
	}
	return &m, nil
}

func (r *Run) SaveMetadata(m *api.RunMetadata) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(r.MetadataPath(), b, 0o644)
}

// Finish records the final state of the run. A nil runErr marks it done.
func (r *Run) Finish(runErr error) error {
	m, err := r.LoadMetadata()
	if err != nil {
		return err
	}
	m.FinishedAt = time.Now()
	m.State = api.RunStateDone
	m.Error = ""
	if runErr != nil {
		m.State = api.RunStateFailed
		m.Error = runErr.Error()
	}
	return r.SaveMetadata(m)
}

// AddTaskOutput appends one task result to the run.
func (r *Run) AddTaskOutput(out *api.TaskOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.OutputsPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// TaskOutputs returns the recorded task results in order. Malformed lines
// are skipped.
func (r *Run) TaskOutputs() ([]api.TaskOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.OutputsPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var outputs []api.TaskOutput
	dec := json.NewDecoder(f)
	for dec.More() {
		var out api.TaskOutput
		if err := dec.Decode(&out); err != nil {
			break
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (r *Run) String() (string, error) {
	m, err := r.LoadMetadata()
	if err != nil {
		return "", err
	}
	finished := "-"
	if !m.FinishedAt.IsZero() {
		finished = m.FinishedAt.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("ID: %s\nCrew: %s\nState: %s\nStrategy: %s\nProvider: %s\nModel: %s\nCreated: %s\nFinished: %s\n",
		r.ID,
		m.Crew,
		m.State,
		m.Strategy,
		m.Provider,
		m.Model,
		m.CreatedAt.Format("2006-01-02 15:04:05"),
		finished), nil
}
