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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// Actions recorded in the journal.
const (
	ActionLLMRequest      = "llm-request"
	ActionLLMResponse     = "llm-response"
	ActionLLMError        = "llm-error"
	ActionMessagesRewrite = "messages-rewrite"
	ActionRewriteFallback = "rewrite-fallback"
	ActionTaskStart       = "task-start"
	ActionTaskComplete    = "task-complete"
	ActionBootstrapDemo   = "bootstrap-demo"
	ActionEvaluation      = "evaluation"
	ActionArtifactLoaded  = "artifact-loaded"
	ActionArtifactSaved   = "artifact-saved"
)

// Recorder is an interface for recording a structured log of the crew's LLM traffic and progress.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder writes a structured log of events to a file as a YAML multi-document stream.
type FileRecorder struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileRecorder creates a new FileRecorder that writes to the given file.
func NewFileRecorder(path string) (*FileRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return &FileRecorder{
		f: file,
	}, nil
}

// Close closes the file.
func (r *FileRecorder) Close() error {
	return r.f.Close()
}

func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	yamlBytes, err := yaml.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	var b bytes.Buffer
	b.Write(yamlBytes)
	b.Write([]byte("\n\n---\n\n"))

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.f.Write(b.Bytes())
	return err
}

// Event is one journal entry. Events belonging to the same LLM call share a RequestID.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	RequestID string    `json:"requestID,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(action string, requestID string, payload any) *Event {
	return &Event{
		Timestamp: time.Now(),
		Action:    action,
		RequestID: requestID,
		Payload:   payload,
	}
}

// NewRequestID returns an identifier used to correlate request and response events.
func NewRequestID() string {
	return uuid.NewString()
}

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *MemoryRecorder) Write(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRecorder) Close() error {
	return nil
}

// Events returns the recorded events, optionally filtered by action.
func (r *MemoryRecorder) Events(actions ...string) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(actions) == 0 {
		return append([]*Event(nil), r.events...)
	}
	var out []*Event
	for _, e := range r.events {
		for _, a := range actions {
			if e.Action == a {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
