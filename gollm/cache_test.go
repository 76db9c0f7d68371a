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
	"bytes"
	"context"
	"strings"
	"testing"
)

type mapStore map[string]string

func (m mapStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapStore) Put(ctx context.Context, key, model, text string) error {
	m[key] = text
	return nil
}

func TestCachingClient(t *testing.T) {
	fake := &fakeClient{responses: []string{"first", "second"}}
	client := NewCachingClient(fake, mapStore{})
	ctx := context.Background()

	req := &CompletionRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for i := 0; i < 3; i++ {
		resp, err := client.GenerateCompletion(ctx, req)
		if err != nil {
			t.Fatalf("GenerateCompletion: %v", err)
		}
		if resp.Response() != "first" {
			t.Errorf("call %d: got %q, want cached %q", i, resp.Response(), "first")
		}
	}
	if fake.calls != 1 {
		t.Errorf("underlying client called %d times, want 1", fake.calls)
	}

	other := &CompletionRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "bye"}}}
	resp, err := client.GenerateCompletion(ctx, other)
	if err != nil {
		t.Fatalf("GenerateCompletion: %v", err)
	}
	if resp.Response() != "second" {
		t.Errorf("got %q, want %q", resp.Response(), "second")
	}
}

func TestCacheKeyFoldsPrompt(t *testing.T) {
	a, err := CacheKey(&CompletionRequest{Model: "m", Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := CacheKey(&CompletionRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected Prompt and equivalent Messages to share a key")
	}

	temp := 0.5
	c, err := CacheKey(&CompletionRequest{Model: "m", Prompt: "hi", Temperature: &temp})
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Errorf("expected temperature to change the key")
	}
}

func TestHistoryClient(t *testing.T) {
	fake := &fakeClient{responses: []string{"r1", "r2", "r3"}}
	h := NewHistoryClient(fake, 2)
	ctx := context.Background()

	for _, p := range []string{"p1", "p2", "p3"} {
		if _, err := h.GenerateCompletion(ctx, &CompletionRequest{
			Model:    "m",
			Messages: []Message{{Role: RoleSystem, Content: "sys"}},
			Prompt:   p,
		}); err != nil {
			t.Fatalf("GenerateCompletion: %v", err)
		}
	}

	entries := h.Entries(0)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Response != "r2" || entries[1].Response != "r3" {
		t.Errorf("unexpected entries %+v", entries)
	}

	var buf bytes.Buffer
	if err := h.InspectHistory(&buf, 1); err != nil {
		t.Fatalf("InspectHistory: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"System message:", "sys", "User message:", "p3", "Response:", "r3"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "p2") {
		t.Errorf("history output should only contain the last call:\n%s", out)
	}
}
