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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/internal/llmcache"
	"github.com/crewtune/crewtune/pkg/crew"
)

func TestLoadConfiguration(t *testing.T) {
	var opt Options
	opt.InitDefaults()

	config := []byte(`
llmProvider: openai
judgeModel: openai/gpt-4.1
noCache: true
recordRun: true
`)
	if err := opt.LoadConfiguration(config); err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}

	if opt.ProviderID != "openai" || opt.JudgeModel != "openai/gpt-4.1" || !opt.NoCache || !opt.RecordRun {
		t.Errorf("configuration not applied: %+v", opt)
	}
	// Unset keys keep their defaults.
	if opt.ImproverModel != "anthropic/claude-sonnet-4-20250514" || opt.MaxTokens != 4096 {
		t.Errorf("defaults overwritten: %+v", opt)
	}
}

func TestBuildRootCommand(t *testing.T) {
	var opt Options
	opt.InitDefaults()
	root, err := BuildRootCommand(&opt)
	if err != nil {
		t.Fatalf("BuildRootCommand: %v", err)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"bootstrap", "crew", "models", "optimize", "runs", "cache", "trace", "version"} {
		if !strings.Contains(strings.Join(names, ","), want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}

	if err := root.PersistentFlags().Parse([]string{"--llm-provider=gemini", "--no-cache", "--output-dir=out"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	if opt.ProviderID != "gemini" || !opt.NoCache || opt.OutputDir != "out" {
		t.Errorf("flags not bound: %+v", opt)
	}
}

func TestExpandPathPlaceholders(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPathPlaceholders(filepath.Join("{HOME}", ".config", "crewtune", "config.yaml"))
	if err != nil {
		t.Fatalf("expandPathPlaceholders: %v", err)
	}
	if want := filepath.Join(home, ".config", "crewtune", "config.yaml"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	plain, err := expandPathPlaceholders("./a/../cache.db")
	if err != nil || plain != "cache.db" {
		t.Errorf("plain path = %q, %v", plain, err)
	}
}

func TestRequireCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	err := requireCredentials("openai", "anthropic")
	if !errors.Is(err, gollm.ErrMissingCredentials) {
		t.Fatalf("requireCredentials error = %v, want ErrMissingCredentials", err)
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("error should name the missing variable: %v", err)
	}

	if err := requireCredentials("openai", "ollama"); err != nil {
		t.Errorf("requireCredentials(openai, ollama) = %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "CREWTUNE_TEST_ENV_FILE_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}

	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestModelRefs(t *testing.T) {
	def, err := crew.LoadBuiltin("travel")
	if err != nil {
		t.Fatal(err)
	}

	refs := crewModelRefs(def, "")
	got := providersOf("anthropic", append(refs, "openai/gpt-4.1", "gemma3:latest")...)
	if diff := cmp.Diff([]string{"anthropic", "openai"}, got); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"grok/grok-3-beta"}, crewModelRefs(def, "grok/grok-3-beta")); diff != "" {
		t.Errorf("override refs mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheCommands(t *testing.T) {
	ctx := context.Background()
	var opt Options
	opt.InitDefaults()
	opt.CachePath = filepath.Join(t.TempDir(), "cache", "llm.db")

	store, err := llmcache.Open(opt.CachePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(ctx, "k1", "claude", "hello"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var buf bytes.Buffer
	if err := handleCacheStats(ctx, opt, &buf); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(buf.String(), "Entries: 1\n") {
		t.Errorf("stats output = %q, want one entry", buf.String())
	}

	buf.Reset()
	if err := handleCachePurge(ctx, opt, &buf); err != nil {
		t.Fatalf("purge: %v", err)
	}
	buf.Reset()
	if err := handleCacheStats(ctx, opt, &buf); err != nil {
		t.Fatalf("stats after purge: %v", err)
	}
	if !strings.Contains(buf.String(), "Entries: 0\n") {
		t.Errorf("stats output after purge = %q, want no entries", buf.String())
	}
}
