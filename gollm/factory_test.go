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
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeClient returns canned responses and counts calls.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	requests  []*CompletionRequest
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := ""
	if i < len(f.responses) {
		text = f.responses[i]
	} else if len(f.responses) > 0 {
		text = f.responses[len(f.responses)-1]
	}
	return NewCompletionResponse(text, nil), nil
}

func (f *fakeClient) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeClient) Close() error { return nil }

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		ref          string
		wantProvider string
		wantModel    string
	}{
		{ref: "anthropic/claude-sonnet-4-20250514", wantProvider: "anthropic", wantModel: "claude-sonnet-4-20250514"},
		{ref: "claude-3-opus-20240229", wantProvider: "default", wantModel: "claude-3-opus-20240229"},
		{ref: "ollama/library/gemma3", wantProvider: "ollama", wantModel: "library/gemma3"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			provider, model := ParseModelRef(tt.ref, "default")
			if provider != tt.wantProvider || model != tt.wantModel {
				t.Errorf("ParseModelRef(%q) = (%q, %q), want (%q, %q)", tt.ref, provider, model, tt.wantProvider, tt.wantModel)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	var r registry
	var gotOpts ClientOptions
	factory := func(ctx context.Context, opts ClientOptions) (Client, error) {
		gotOpts = opts
		return &fakeClient{}, nil
	}

	if err := r.RegisterProvider("fake", factory); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := r.RegisterProvider("fake", factory); err == nil {
		t.Errorf("expected duplicate registration to fail")
	}

	if _, err := r.NewClient(context.Background(), "fake", WithSkipVerifySSL()); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !gotOpts.SkipVerifySSL {
		t.Errorf("expected SkipVerifySSL to be passed to the factory")
	}
	if gotOpts.URL == nil || gotOpts.URL.Scheme != "fake" {
		t.Errorf("unexpected URL %v", gotOpts.URL)
	}

	if _, err := r.NewClient(context.Background(), "missing"); err == nil {
		t.Errorf("expected unknown provider to fail")
	}
}

func TestBuiltinProvidersRegistered(t *testing.T) {
	registered := map[string]bool{}
	for _, id := range Providers() {
		registered[id] = true
	}
	for _, id := range []string{"anthropic", "claude", "openai", "openai-compatible", "grok", "ollama", "gemini"} {
		if !registered[id] {
			t.Errorf("provider %q not registered", id)
		}
	}
}

func TestAnthropicMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(context.Background(), "anthropic")
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestDefaultIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &APIError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "overloaded", err: &APIError{StatusCode: 529}, want: true},
		{name: "bad request", err: &APIError{StatusCode: http.StatusBadRequest}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultIsRetryableError(tt.err); got != tt.want {
				t.Errorf("DefaultIsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryClient(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  2,
	}

	t.Run("retries transient errors", func(t *testing.T) {
		fake := &fakeClient{
			errs:      []error{&APIError{StatusCode: http.StatusServiceUnavailable}, nil},
			responses: []string{"", "ok"},
		}
		client := NewRetryClient(fake, config, nil)
		resp, err := client.GenerateCompletion(context.Background(), &CompletionRequest{Prompt: "hi"})
		if err != nil {
			t.Fatalf("GenerateCompletion: %v", err)
		}
		if resp.Response() != "ok" {
			t.Errorf("got %q, want %q", resp.Response(), "ok")
		}
		if fake.calls != 2 {
			t.Errorf("got %d calls, want 2", fake.calls)
		}
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		fake := &fakeClient{errs: []error{&APIError{StatusCode: http.StatusUnauthorized}}}
		client := NewRetryClient(fake, config, nil)
		if _, err := client.GenerateCompletion(context.Background(), &CompletionRequest{Prompt: "hi"}); err == nil {
			t.Fatalf("expected error")
		}
		if fake.calls != 1 {
			t.Errorf("got %d calls, want 1", fake.calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		transient := &APIError{StatusCode: http.StatusTooManyRequests}
		fake := &fakeClient{errs: []error{transient, transient, transient, transient}}
		client := NewRetryClient(fake, config, nil)
		_, err := client.GenerateCompletion(context.Background(), &CompletionRequest{Prompt: "hi"})
		if !errors.Is(err, transient) {
			t.Errorf("expected wrapped transient error, got %v", err)
		}
		if fake.calls != 3 {
			t.Errorf("got %d calls, want 3", fake.calls)
		}
	})
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "b"},
	})
	if system != "a\n\nb" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "u" {
		t.Errorf("rest = %v", rest)
	}
}
