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
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/journal"
)

// Evaluate scores a program over a dev set.
type Evaluate struct {
	Devset     []Example
	Metric     Metric
	NumThreads int

	// Progress, when set, is called after each example is scored.
	Progress func(done, total int)
}

type ExampleResult struct {
	Index      int
	Example    Example
	Prediction Prediction
	Score      float64
}

type EvaluationResult struct {
	// Score is the mean metric score over the dev set.
	Score   float64
	Results []ExampleResult
}

// Run evaluates program on every dev example. The first prediction or
// metric error cancels the remaining work and is returned.
func (e *Evaluate) Run(ctx context.Context, program Module) (*EvaluationResult, error) {
	if len(e.Devset) == 0 {
		return nil, errors.New("evaluate: empty dev set")
	}
	if e.Metric == nil {
		return nil, errors.New("evaluate: no metric")
	}

	results := make([]ExampleResult, len(e.Devset))
	progress := make(chan struct{}, len(e.Devset))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.NumThreads, 1))
	for i, ex := range e.Devset {
		g.Go(func() error {
			pred, err := program.Forward(gctx, ex.Inputs())
			if err != nil {
				return fmt.Errorf("example %d: %w", i, err)
			}
			score, err := e.Metric(gctx, ex, pred, nil)
			if err != nil {
				return fmt.Errorf("example %d: metric: %w", i, err)
			}
			results[i] = ExampleResult{Index: i, Example: ex, Prediction: pred, Score: score}
			progress <- struct{}{}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for range progress {
			n++
			if e.Progress != nil {
				e.Progress(n, len(e.Devset))
			}
		}
	}()

	err := g.Wait()
	close(progress)
	<-done
	if err != nil {
		return nil, err
	}

	var total float64
	for _, r := range results {
		total += r.Score
	}
	res := &EvaluationResult{Score: total / float64(len(results)), Results: results}

	klog.FromContext(ctx).Info("Evaluation finished", "examples", len(results), "score", res.Score)
	journal.Record(ctx, journal.ActionEvaluation, "", map[string]any{"examples": len(results), "score": res.Score})
	return res, nil
}
