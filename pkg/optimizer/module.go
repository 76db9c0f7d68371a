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

import "context"

// Module is a program built from one or more predictors.
type Module interface {
	Forward(ctx context.Context, inputs map[string]any) (Prediction, error)

	// NamedPredictors returns the predictors in a stable order. Names are
	// used as keys in saved artifacts.
	NamedPredictors() []NamedPredictor

	// Clone returns an independent copy whose predictors can be modified.
	Clone() Module
}

type NamedPredictor struct {
	Name    string
	Predict *Predict
}

// Metric scores a prediction against its example. BootstrapFewShot treats a
// score above zero (or at least Threshold, when set) as a success.
type Metric func(ctx context.Context, example Example, pred Prediction, trace *Trace) (float64, error)
