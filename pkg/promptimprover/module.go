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

package promptimprover

import (
	"context"
	"errors"
	"strings"

	"github.com/crewtune/crewtune/pkg/llmstrategy"
	"github.com/crewtune/crewtune/pkg/optimizer"
)

// PredictorName keys the single predictor in saved artifacts.
const PredictorName = "improver"

// Module rewrites one prompt with a few-shot ImprovePrompt predictor.
type Module struct {
	Variant Variant

	improver *optimizer.Predict
}

var (
	_ optimizer.Module     = &Module{}
	_ llmstrategy.Improver = &Module{}
)

// NewModule returns an uncompiled module. When lm is nil the model is taken
// from the call context.
func NewModule(v Variant, lm *optimizer.LM) *Module {
	p := optimizer.NewPredict(v.Signature)
	p.LM = lm
	return &Module{Variant: v, improver: p}
}

func (m *Module) Forward(ctx context.Context, inputs map[string]any) (optimizer.Prediction, error) {
	return m.improver.Forward(ctx, inputs)
}

func (m *Module) NamedPredictors() []optimizer.NamedPredictor {
	return []optimizer.NamedPredictor{{Name: PredictorName, Predict: m.improver}}
}

func (m *Module) Clone() optimizer.Module {
	return &Module{Variant: m.Variant, improver: m.improver.ClonePredict()}
}

// Demos returns the few-shot demos currently attached to the predictor.
func (m *Module) Demos() []optimizer.Example {
	return m.improver.Demos
}

// Improve returns the rewritten prompt with surrounding whitespace removed.
func (m *Module) Improve(ctx context.Context, prompt string) (string, error) {
	pred, err := m.Forward(ctx, map[string]any{m.Variant.InputField: prompt})
	if err != nil {
		return "", err
	}
	improved := strings.TrimSpace(pred.String(m.Variant.OutputField))
	if improved == "" {
		return "", errors.New("rewrite produced no text")
	}
	return improved, nil
}
