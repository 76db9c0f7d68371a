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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crewtune/crewtune/pkg/api"
)

func TestRunLifecycle(t *testing.T) {
	m, err := NewManagerAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewManagerAt: %v", err)
	}

	r, err := m.NewRun(api.RunMetadata{
		Crew:     "travel",
		Inputs:   map[string]string{"topic": "Kenyan couple going to Netherlands for 5 days"},
		Strategy: api.StrategyOptimize,
	})
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	meta, err := r.LoadMetadata()
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if meta.ID != r.ID || meta.State != api.RunStateRunning || meta.CreatedAt.IsZero() {
		t.Errorf("unexpected initial metadata %+v", meta)
	}

	outputs := []api.TaskOutput{
		{Name: "itinerary_creation_task", Agent: "travel_planner", Raw: "Day 1: Amsterdam"},
		{Name: "visa_check_task", Agent: "visa_expert", Raw: "Schengen visa required"},
	}
	for i := range outputs {
		if err := r.AddTaskOutput(&outputs[i]); err != nil {
			t.Fatalf("AddTaskOutput: %v", err)
		}
	}
	got, err := r.TaskOutputs()
	if err != nil {
		t.Fatalf("TaskOutputs: %v", err)
	}
	if diff := cmp.Diff(outputs, got); diff != "" {
		t.Errorf("task outputs mismatch (-want +got):\n%s", diff)
	}

	if err := r.Finish(errors.New("model unavailable")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	meta, _ = r.LoadMetadata()
	if meta.State != api.RunStateFailed || meta.Error != "model unavailable" || meta.FinishedAt.IsZero() {
		t.Errorf("unexpected final metadata %+v", meta)
	}

	s, err := r.String()
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if !strings.Contains(s, "Crew: travel") || !strings.Contains(s, "State: failed") {
		t.Errorf("unexpected summary:\n%s", s)
	}
}

func TestListFindDelete(t *testing.T) {
	m, err := NewManagerAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if latest, err := m.LatestRun(); err != nil || latest != nil {
		t.Fatalf("LatestRun on empty store = (%v, %v)", latest, err)
	}

	first, err := m.NewRun(api.RunMetadata{Crew: "opportunity"})
	if err != nil {
		t.Fatal(err)
	}
	// IDs have one-second resolution.
	time.Sleep(1100 * time.Millisecond)
	second, err := m.NewRun(api.RunMetadata{Crew: "startup"})
	if err != nil {
		t.Fatal(err)
	}

	all, err := m.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{second.ID, first.ID}, ids); diff != "" {
		t.Errorf("runs not newest first (-want +got):\n%s", diff)
	}

	latest, err := m.LatestRun()
	if err != nil || latest.ID != second.ID {
		t.Errorf("LatestRun = %v, %v; want %s", latest, err, second.ID)
	}

	if err := m.DeleteRun(first.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := m.FindRunByID(first.ID); err == nil {
		t.Errorf("expected deleted run to be gone")
	}
	if err := m.DeleteRun("missing"); err == nil {
		t.Errorf("expected an error deleting an unknown run")
	}
}
