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

package gollm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// HistoryEntry is one recorded call.
type HistoryEntry struct {
	Timestamp time.Time
	Model     string
	Messages  []Message
	Response  string
	Err       error
}

// HistoryClient keeps the most recent calls made through it so they can be
// printed for inspection.
type HistoryClient struct {
	underlying Client
	limit      int

	mu      sync.Mutex
	entries []HistoryEntry
}

var _ Client = &HistoryClient{}

// NewHistoryClient records up to limit calls; older entries are dropped.
// A limit of zero or less keeps everything.
func NewHistoryClient(underlying Client, limit int) *HistoryClient {
	return &HistoryClient{underlying: underlying, limit: limit}
}

func (h *HistoryClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	resp, err := h.underlying.GenerateCompletion(ctx, req)

	entry := HistoryEntry{
		Timestamp: time.Now(),
		Model:     req.Model,
		Messages:  req.AllMessages(),
		Err:       err,
	}
	if resp != nil {
		entry.Response = resp.Response()
	}

	h.mu.Lock()
	h.entries = append(h.entries, entry)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
	h.mu.Unlock()

	return resp, err
}

func (h *HistoryClient) ListModels(ctx context.Context) ([]string, error) {
	return h.underlying.ListModels(ctx)
}

func (h *HistoryClient) Close() error {
	return h.underlying.Close()
}

// Entries returns a copy of the last n recorded calls, oldest first.
func (h *HistoryClient) Entries(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// InspectHistory writes the last n calls in a readable transcript form.
func (h *HistoryClient) InspectHistory(w io.Writer, n int) error {
	for _, e := range h.Entries(n) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "\n\n[%s] %s\n", e.Timestamp.Format(time.DateTime), e.Model)
		for _, m := range e.Messages {
			fmt.Fprintf(&sb, "\n%s message:\n\n%s\n", titleRole(m.Role), m.Content)
		}
		if e.Err != nil {
			fmt.Fprintf(&sb, "\nError:\n\n%v\n", e.Err)
		} else {
			fmt.Fprintf(&sb, "\nResponse:\n\n%s\n", e.Response)
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func titleRole(r Role) string {
	s := string(r)
	if s == "" {
		return "User"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
