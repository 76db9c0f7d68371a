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
	"fmt"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/journal"
)

// LLM is the single entry point through which a crew talks to a model.
// Every call is routed through Strategy before reaching Client.
type LLM struct {
	Client   gollm.Client
	Model    string
	Strategy Strategy

	MaxTokens   int
	Temperature *float64
}

// Call normalizes input, lets the strategy prepare the messages, forwards
// them to the model and returns the response text. Errors from the model
// are returned as is; the strategy itself never fails the call.
func (l *LLM) Call(ctx context.Context, input any) (string, error) {
	log := klog.FromContext(ctx)

	msgs, err := NormalizeMessages(input)
	if err != nil {
		return "", err
	}

	if l.Strategy != nil {
		msgs = l.Strategy.Prepare(ctx, msgs)
	}

	req := &gollm.CompletionRequest{
		Model:       l.Model,
		Messages:    msgs,
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
	}

	requestID := journal.NewRequestID()
	journal.Record(ctx, journal.ActionLLMRequest, requestID, gollm.RecordCompletionRequest{
		Model:    l.Model,
		Messages: msgs,
	})

	log.V(1).Info("Calling LLM", "model", l.Model, "messages", len(msgs))
	resp, err := l.Client.GenerateCompletion(ctx, req)
	if err != nil {
		journal.Record(ctx, journal.ActionLLMError, requestID, map[string]any{"error": err.Error()})
		return "", fmt.Errorf("calling model %q: %w", l.Model, err)
	}

	journal.Record(ctx, journal.ActionLLMResponse, requestID, gollm.NewRecordCompletionResponse(resp))
	return resp.Response(), nil
}
