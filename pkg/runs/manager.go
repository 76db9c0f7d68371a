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

// Package runs stores the history of crew runs on disk: one directory per
// run holding its metadata and the output of every task.
package runs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/crewtune/crewtune/pkg/api"
)

const (
	runsDirName = "runs"
	timeFormat  = "20060102-150405"
)

type Manager struct {
	BasePath string
}

// NewManager returns a manager rooted at ~/.crewtune/runs.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(homeDir, ".crewtune", runsDirName))
}

func NewManagerAt(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}
	return &Manager{BasePath: basePath}, nil
}

// NewRun creates a run directory. IDs start with the creation time so that
// they sort chronologically.
func (m *Manager) NewRun(meta api.RunMetadata) (*Run, error) {
	now := time.Now()
	id := now.Format(timeFormat) + "-" + uuid.NewString()[:8]
	runPath := filepath.Join(m.BasePath, id)

	if err := os.MkdirAll(runPath, 0o755); err != nil {
		return nil, err
	}

	r := &Run{ID: id, Path: runPath}

	meta.ID = id
	meta.CreatedAt = now
	if meta.State == "" {
		meta.State = api.RunStateRunning
	}
	if err := r.SaveMetadata(&meta); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (m *Manager) ListRuns() ([]*Run, error) {
	entries, err := os.ReadDir(m.BasePath)
	if err != nil {
		return nil, err
	}

	var runs []*Run
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runs = append(runs, &Run{
			ID:   entry.Name(),
			Path: filepath.Join(m.BasePath, entry.Name()),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ID > runs[j].ID
	})
	return runs, nil
}

// LatestRun returns the newest run, or nil when there are none.
func (m *Manager) LatestRun() (*Run, error) {
	runs, err := m.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func (m *Manager) FindRunByID(id string) (*Run, error) {
	runs, err := m.ListRuns()
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("run with ID %q not found", id)
}

// DeleteRun deletes a run and all its data.
func (m *Manager) DeleteRun(id string) error {
	r, err := m.FindRunByID(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(r.Path)
}
