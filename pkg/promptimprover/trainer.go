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
	"fmt"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/optimizer"
)

// Trainer compiles a Module with bootstrap few-shot and scores the result
// on the development set.
type Trainer struct {
	Dataset *Dataset
	Metric  optimizer.Metric

	MaxLabeledDemos int
	NumThreads      int

	// Progress is called after each dev example is scored.
	Progress func(done, total int)
}

// TrainReport describes one training run.
type TrainReport struct {
	Compile *optimizer.CompileReport
	// DevScore is the mean metric score on the dev set; zero when the
	// dataset has no dev examples.
	DevScore float64
	Dev      *optimizer.EvaluationResult
}

// NewTrainer returns a trainer limited to three labeled demos.
func NewTrainer(ds *Dataset, metric optimizer.Metric) *Trainer {
	return &Trainer{
		Dataset:         ds,
		Metric:          metric,
		MaxLabeledDemos: 3,
		NumThreads:      1,
	}
}

// Train compiles student and evaluates the compiled module. student is not
// modified.
func (t *Trainer) Train(ctx context.Context, student *Module) (*Module, *TrainReport, error) {
	m, compileReport, err := t.Compile(ctx, student)
	if err != nil {
		return nil, nil, err
	}
	report := &TrainReport{Compile: compileReport}

	res, err := t.Evaluate(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	if res != nil {
		report.Dev = res
		report.DevScore = res.Score
	}
	return m, report, nil
}

// Compile bootstraps demos for a copy of student from the training set.
func (t *Trainer) Compile(ctx context.Context, student *Module) (*Module, *optimizer.CompileReport, error) {
	bs := optimizer.NewBootstrapFewShot(t.Metric)
	if t.MaxLabeledDemos > 0 {
		bs.MaxLabeledDemos = t.MaxLabeledDemos
	}

	compiled, report, err := bs.Compile(ctx, student, t.Dataset.Train)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling prompt improver: %w", err)
	}
	m, ok := compiled.(*Module)
	if !ok {
		return nil, nil, fmt.Errorf("compiled program has unexpected type %T", compiled)
	}
	return m, report, nil
}

// Evaluate scores m on the dev set. It returns nil when the dataset has no
// dev examples.
func (t *Trainer) Evaluate(ctx context.Context, m *Module) (*optimizer.EvaluationResult, error) {
	if len(t.Dataset.Dev) == 0 {
		klog.FromContext(ctx).Info("No dev examples, skipping evaluation")
		return nil, nil
	}

	eval := &optimizer.Evaluate{
		Devset:     t.Dataset.Dev,
		Metric:     t.Metric,
		NumThreads: t.NumThreads,
		Progress:   t.Progress,
	}
	res, err := eval.Run(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("evaluating prompt improver: %w", err)
	}
	return res, nil
}
