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
	"fmt"
	"slices"

	"k8s.io/klog/v2"
)

// Predict calls a language model to fill in a Signature's outputs from its
// inputs, showing Demos as worked examples.
type Predict struct {
	Signature Signature
	Demos     []Example

	// LM overrides the model found in the call context.
	LM *LM

	Adapter ChatAdapter
}

var _ Module = &Predict{}

func NewPredict(sig Signature) *Predict {
	return &Predict{Signature: sig}
}

// Forward runs the predictor on inputs.
func (p *Predict) Forward(ctx context.Context, inputs map[string]any) (Prediction, error) {
	log := klog.FromContext(ctx)

	lm := p.LM
	if lm == nil {
		lm = LMFromContext(ctx)
	}
	if lm == nil || lm.Client == nil {
		return nil, ErrNoLM
	}

	for _, name := range p.Signature.InputNames() {
		if _, ok := inputs[name]; !ok {
			return nil, fmt.Errorf("signature %q: missing input %q", p.Signature.Name, name)
		}
	}

	msgs := p.Adapter.Format(p.Signature, p.Demos, inputs)
	log.V(2).Info("Predict call", "signature", p.Signature.Name, "demos", len(p.Demos), "model", lm.Model)

	completion, err := lm.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("signature %q: %w", p.Signature.Name, err)
	}

	pred, err := p.Adapter.Parse(p.Signature, completion)
	if err != nil {
		return nil, fmt.Errorf("signature %q: parsing completion: %w", p.Signature.Name, err)
	}

	recordStep(ctx, p, inputs, pred)
	return pred, nil
}

// NamedPredictors reports the predictor itself under the name "self".
func (p *Predict) NamedPredictors() []NamedPredictor {
	return []NamedPredictor{{Name: "self", Predict: p}}
}

// Clone returns a deep copy; demos are copied, the LM is shared.
func (p *Predict) Clone() Module {
	return p.clonePredict()
}

func (p *Predict) clonePredict() *Predict {
	cp := *p
	cp.Demos = slices.Clone(p.Demos)
	cp.Signature.Inputs = slices.Clone(p.Signature.Inputs)
	cp.Signature.Outputs = slices.Clone(p.Signature.Outputs)
	return &cp
}

// ClonePredict exposes a typed deep copy for modules composed of predictors.
func (p *Predict) ClonePredict() *Predict {
	return p.clonePredict()
}
