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

package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trace.yaml")

	recorder, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	ctx = ContextWithRecorder(ctx, recorder)

	id := NewRequestID()
	Record(ctx, ActionLLMRequest, id, map[string]any{"model": "claude", "prompt": strings.Repeat("x", 100000)})
	Record(ctx, ActionLLMResponse, id, map[string]any{"text": "done"})
	Record(ctx, ActionTaskComplete, "", map[string]any{"task": "research_task"})
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := ParseEventsFromFile(path)
	if err != nil {
		t.Fatalf("ParseEventsFromFile: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].RequestID != id || events[1].RequestID != id {
		t.Errorf("request and response should share request id %q", id)
	}
	if events[2].Action != ActionTaskComplete {
		t.Errorf("got action %q, want %q", events[2].Action, ActionTaskComplete)
	}

	counts := CountByAction(events)
	if counts[ActionLLMRequest] != 1 || counts[ActionLLMResponse] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestRecorderFromContextDefaultsToLog(t *testing.T) {
	if _, ok := RecorderFromContext(context.Background()).(*LogRecorder); !ok {
		t.Errorf("expected LogRecorder when no recorder is set")
	}
}

func TestMemoryRecorderFilter(t *testing.T) {
	rec := &MemoryRecorder{}
	ctx := ContextWithRecorder(context.Background(), rec)
	Record(ctx, ActionMessagesRewrite, "", nil)
	Record(ctx, ActionRewriteFallback, "", nil)
	Record(ctx, ActionMessagesRewrite, "", nil)

	if got := len(rec.Events()); got != 3 {
		t.Errorf("got %d events, want 3", got)
	}
	if got := len(rec.Events(ActionMessagesRewrite)); got != 2 {
		t.Errorf("got %d rewrite events, want 2", got)
	}
}
