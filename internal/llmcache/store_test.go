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

package llmcache

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "llm.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want miss", ok, err)
	}

	if err := store.Put(ctx, "k1", "claude", "hello"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Overwrites are allowed.
	if err := store.Put(ctx, "k1", "claude", "hello again"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	text, ok, err := store.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get(k1) = ok=%v err=%v", ok, err)
	}
	if text != "hello again" {
		t.Errorf("Get(k1) = %q, want %q", text, "hello again")
	}

	entries, hits, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if entries != 1 || hits != 1 {
		t.Errorf("Stats = (%d, %d), want (1, 1)", entries, hits)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, _ := reopened.Get(ctx, "k1"); !ok {
		t.Errorf("expected entry to survive reopening")
	}

	if err := reopened.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok, _ := reopened.Get(ctx, "k1"); ok {
		t.Errorf("expected entry to be purged")
	}
}
