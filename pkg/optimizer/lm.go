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

package optimizer

import (
	"context"
	"errors"

	"github.com/crewtune/crewtune/gollm"
)

// ErrNoLM is returned when a predictor has no language model to call.
var ErrNoLM = errors.New("no language model configured")

// LM binds a client to a model and sampling settings.
type LM struct {
	Client      gollm.Client
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Generate sends messages and returns the response text.
func (lm *LM) Generate(ctx context.Context, msgs []gollm.Message) (string, error) {
	resp, err := lm.Client.GenerateCompletion(ctx, &gollm.CompletionRequest{
		Model:       lm.Model,
		Messages:    msgs,
		MaxTokens:   lm.MaxTokens,
		Temperature: lm.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Response(), nil
}

type lmKey struct{}

// ContextWithLM makes lm the default model for predictors called with ctx.
func ContextWithLM(ctx context.Context, lm *LM) context.Context {
	return context.WithValue(ctx, lmKey{}, lm)
}

// LMFromContext returns the model set by ContextWithLM, or nil.
func LMFromContext(ctx context.Context) *LM {
	lm, _ := ctx.Value(lmKey{}).(*LM)
	return lm
}
