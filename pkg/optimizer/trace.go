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
	"maps"
	"sync"
)

// TraceStep is one predictor invocation.
type TraceStep struct {
	Predictor *Predict
	Inputs    map[string]any
	Outputs   Prediction
}

// Trace collects the predictor invocations made under a context.
type Trace struct {
	mu    sync.Mutex
	steps []TraceStep
}

func (t *Trace) add(step TraceStep) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step)
}

// Steps returns the recorded invocations in call order.
func (t *Trace) Steps() []TraceStep {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceStep(nil), t.steps...)
}

type traceKey struct{}

// WithTrace returns a context under which predictor calls are recorded.
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	t := &Trace{}
	return context.WithValue(ctx, traceKey{}, t), t
}

func traceFromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

func recordStep(ctx context.Context, p *Predict, inputs map[string]any, outputs Prediction) {
	if t := traceFromContext(ctx); t != nil {
		t.add(TraceStep{Predictor: p, Inputs: maps.Clone(inputs), Outputs: maps.Clone(outputs)})
	}
}
