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

package llmstrategy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/internal/mocks"
	"github.com/crewtune/crewtune/pkg/journal"
)

func TestNormalizeMessages(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []gollm.Message
		wantErr bool
	}{
		{
			name:  "bare string becomes one user message",
			input: "Plan a trip",
			want:  []gollm.Message{{Role: gollm.RoleUser, Content: "Plan a trip"}},
		},
		{
			name: "message list is preserved",
			input: []gollm.Message{
				{Role: gollm.RoleSystem, Content: "s"},
				{Role: gollm.RoleUser, Content: "u"},
			},
			want: []gollm.Message{
				{Role: gollm.RoleSystem, Content: "s"},
				{Role: gollm.RoleUser, Content: "u"},
			},
		},
		{
			name: "maps are converted and missing roles default to user",
			input: []map[string]string{
				{"role": "system", "content": "s"},
				{"content": "u"},
			},
			want: []gollm.Message{
				{Role: gollm.RoleSystem, Content: "s"},
				{Role: gollm.RoleUser, Content: "u"},
			},
		},
		{
			name:    "unsupported type",
			input:   42,
			wantErr: true,
		},
		{
			name:    "nil",
			input:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMessages(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeMessages: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeMessages() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type recordingPrinter struct {
	titles   []string
	warnings []string
}

func (p *recordingPrinter) PrintMessages(title string, msgs []gollm.Message) {
	p.titles = append(p.titles, title)
}

func (p *recordingPrinter) Warnf(format string, args ...any) {
	p.warnings = append(p.warnings, format)
}

func TestPassThroughReturnsInput(t *testing.T) {
	printer := &recordingPrinter{}
	s := &PassThrough{Printer: printer}
	in := []gollm.Message{{Role: gollm.RoleSystem, Content: "s"}, {Role: gollm.RoleUser, Content: "u"}}

	got := s.Prepare(context.Background(), in)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Prepare() mismatch (-want +got):\n%s", diff)
	}
	if len(printer.titles) != 1 {
		t.Errorf("expected messages to be printed once, got %d", len(printer.titles))
	}
}

func TestOptimizePreservesShapeAndFallsBack(t *testing.T) {
	improver := ImproverFunc(func(ctx context.Context, prompt string) (string, error) {
		switch prompt {
		case "fail":
			return "", errors.New("model unavailable")
		case "empty":
			return "   ", nil
		case "panic":
			panic("boom")
		}
		return "  IMPROVED: " + prompt + "\n", nil
	})

	in := []gollm.Message{
		{Role: gollm.RoleSystem, Content: "persona"},
		{Role: gollm.RoleUser, Content: "fail"},
		{Role: gollm.RoleAssistant, Content: "empty"},
		{Role: gollm.RoleUser, Content: "panic"},
		{Role: gollm.RoleUser, Content: "task"},
	}
	original := append([]gollm.Message(nil), in...)

	rec := &journal.MemoryRecorder{}
	ctx := journal.ContextWithRecorder(context.Background(), rec)
	printer := &recordingPrinter{}

	s := &Optimize{Improver: improver, Printer: printer}
	got := s.Prepare(ctx, in)

	want := []gollm.Message{
		{Role: gollm.RoleSystem, Content: "IMPROVED: persona"},
		{Role: gollm.RoleUser, Content: "fail"},
		{Role: gollm.RoleAssistant, Content: "empty"},
		{Role: gollm.RoleUser, Content: "panic"},
		{Role: gollm.RoleUser, Content: "IMPROVED: task"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Prepare() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original, in); diff != "" {
		t.Errorf("input was modified (-want +got):\n%s", diff)
	}

	if got := len(rec.Events(journal.ActionRewriteFallback)); got != 3 {
		t.Errorf("got %d fallback events, want 3", got)
	}
	if len(printer.warnings) != 3 {
		t.Errorf("got %d warnings, want 3", len(printer.warnings))
	}
	if len(printer.titles) != 2 {
		t.Errorf("expected before and after listings, got %v", printer.titles)
	}
}

func TestOptimizeWithoutImproverKeepsMessages(t *testing.T) {
	in := []gollm.Message{{Role: gollm.RoleUser, Content: "task"}}
	got := (&Optimize{}).Prepare(context.Background(), in)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("Prepare() mismatch (-want +got):\n%s", diff)
	}
}

func TestLLMCallForwardsPreparedMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)

	var sent *gollm.CompletionRequest
	client.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *gollm.CompletionRequest) (gollm.CompletionResponse, error) {
			sent = req
			return gollm.NewCompletionResponse("Final Answer: done", nil), nil
		}).Times(1)

	llm := &LLM{
		Client: client,
		Model:  "claude-sonnet-4-20250514",
		Strategy: &Optimize{Improver: ImproverFunc(func(ctx context.Context, p string) (string, error) {
			return strings.ToUpper(p), nil
		})},
	}

	rec := &journal.MemoryRecorder{}
	ctx := journal.ContextWithRecorder(context.Background(), rec)

	got, err := llm.Call(ctx, "plan a trip")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "Final Answer: done" {
		t.Errorf("Call() = %q", got)
	}

	want := []gollm.Message{{Role: gollm.RoleUser, Content: "PLAN A TRIP"}}
	if diff := cmp.Diff(want, sent.Messages); diff != "" {
		t.Errorf("forwarded messages mismatch (-want +got):\n%s", diff)
	}
	if sent.Model != "claude-sonnet-4-20250514" {
		t.Errorf("forwarded model %q", sent.Model)
	}

	reqs := rec.Events(journal.ActionLLMRequest)
	resps := rec.Events(journal.ActionLLMResponse)
	if len(reqs) != 1 || len(resps) != 1 || reqs[0].RequestID != resps[0].RequestID {
		t.Errorf("expected one correlated request/response pair, got %d/%d", len(reqs), len(resps))
	}
}

func TestLLMCallPropagatesModelErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	apiErr := &gollm.APIError{StatusCode: 401, Message: "unauthorized"}
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Return(nil, apiErr).Times(1)

	llm := &LLM{Client: client, Model: "m", Strategy: &PassThrough{}}
	_, err := llm.Call(context.Background(), "hi")
	if !errors.Is(err, apiErr) {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}
