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
	"math/rand/v2"
	"slices"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/journal"
)

const augmentedKey = "augmented"

// BootstrapFewShot compiles a module by running a teacher copy of it over
// the training set and keeping the traces of successful runs as demos.
// Remaining slots are filled with raw labeled examples.
type BootstrapFewShot struct {
	Metric Metric
	// Threshold, when non-zero, is the minimum metric score of a success.
	Threshold float64

	MaxBootstrappedDemos int
	MaxLabeledDemos      int
	MaxRounds            int
	MaxErrors            int

	// Seed drives the sampling of labeled demos.
	Seed uint64
}

// NewBootstrapFewShot returns a compiler with the usual defaults.
func NewBootstrapFewShot(metric Metric) *BootstrapFewShot {
	return &BootstrapFewShot{
		Metric:               metric,
		MaxBootstrappedDemos: 4,
		MaxLabeledDemos:      16,
		MaxRounds:            1,
		MaxErrors:            10,
	}
}

// CompileReport summarizes a compilation.
type CompileReport struct {
	Bootstrapped map[string]int
	Attempted    int
	Succeeded    int
	Errors       int
}

// Compile returns an optimized copy of student. The student itself is not modified.
func (b *BootstrapFewShot) Compile(ctx context.Context, student Module, trainset []Example) (Module, *CompileReport, error) {
	log := klog.FromContext(ctx)

	if len(trainset) == 0 {
		return nil, nil, errors.New("bootstrap: empty training set")
	}

	compiled := student.Clone()
	teacher := b.labeledTeacher(student, trainset)

	report := &CompileReport{Bootstrapped: map[string]int{}}
	name2demos := map[string][]Example{}
	bootstrapped := map[int]bool{}

	maxRounds := max(b.MaxRounds, 1)
	for round := 0; round < maxRounds; round++ {
		for i, example := range trainset {
			if len(bootstrapped) >= b.MaxBootstrappedDemos {
				break
			}
			if bootstrapped[i] {
				continue
			}

			report.Attempted++
			demos, ok, err := b.bootstrapOne(ctx, teacher, example)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				report.Errors++
				log.Error(err, "bootstrapping example failed", "example", i, "round", round)
				if b.MaxErrors > 0 && report.Errors >= b.MaxErrors {
					return nil, nil, fmt.Errorf("bootstrap: too many errors (%d): %w", report.Errors, err)
				}
				continue
			}
			if !ok {
				continue
			}

			bootstrapped[i] = true
			report.Succeeded++
			for name, ds := range demos {
				name2demos[name] = append(name2demos[name], ds...)
			}
			journal.Record(ctx, journal.ActionBootstrapDemo, "", map[string]any{"example": i, "round": round})
		}
	}

	// Examples that were not bootstrapped remain available as raw demos.
	var validation []Example
	for i, ex := range trainset {
		if !bootstrapped[i] {
			validation = append(validation, ex)
		}
	}
	rng := b.rng()
	rng.Shuffle(len(validation), func(i, j int) { validation[i], validation[j] = validation[j], validation[i] })

	for _, np := range compiled.NamedPredictors() {
		augmented := name2demos[np.Name]
		if len(augmented) > b.MaxBootstrappedDemos {
			augmented = augmented[:b.MaxBootstrappedDemos]
		}
		sampleSize := min(b.MaxLabeledDemos-len(augmented), len(validation))
		sampleSize = max(sampleSize, 0)
		raw := sample(rng, validation, sampleSize)

		np.Predict.Demos = append(slices.Clone(augmented), raw...)
		report.Bootstrapped[np.Name] = len(augmented)
		log.Info("Compiled predictor", "predictor", np.Name, "bootstrapped", len(augmented), "labeled", len(raw))
	}

	return compiled, report, nil
}

// labeledTeacher returns a copy of student whose predictors carry up to
// MaxLabeledDemos raw training examples.
func (b *BootstrapFewShot) labeledTeacher(student Module, trainset []Example) Module {
	teacher := student.Clone()
	if b.MaxLabeledDemos <= 0 {
		return teacher
	}
	rng := b.rng()
	k := min(b.MaxLabeledDemos, len(trainset))
	for _, np := range teacher.NamedPredictors() {
		np.Predict.Demos = sample(rng, trainset, k)
	}
	return teacher
}

// bootstrapOne runs the teacher on one example, with that example removed
// from the teacher's demos, and returns the traced demos per predictor if
// the metric accepts the prediction.
func (b *BootstrapFewShot) bootstrapOne(ctx context.Context, teacher Module, example Example) (map[string][]Example, bool, error) {
	predictors := teacher.NamedPredictors()

	saved := make([][]Example, len(predictors))
	for i, np := range predictors {
		saved[i] = np.Predict.Demos
		np.Predict.Demos = slices.DeleteFunc(slices.Clone(saved[i]), example.Equal)
	}
	defer func() {
		for i, np := range predictors {
			np.Predict.Demos = saved[i]
		}
	}()

	traceCtx, trace := WithTrace(ctx)
	pred, err := teacher.Forward(traceCtx, example.Inputs())
	if err != nil {
		return nil, false, err
	}

	if b.Metric != nil {
		score, err := b.Metric(ctx, example, pred, trace)
		if err != nil {
			return nil, false, fmt.Errorf("metric: %w", err)
		}
		if !b.accepts(score) {
			return nil, false, nil
		}
	}

	demos := map[string][]Example{}
	for _, step := range trace.Steps() {
		name := predictorName(predictors, step.Predictor)
		if name == "" {
			continue
		}
		fields := map[string]any{augmentedKey: true}
		for k, v := range step.Inputs {
			fields[k] = v
		}
		for k, v := range step.Outputs {
			fields[k] = v
		}
		demos[name] = append(demos[name], NewExample(fields))
	}
	return demos, true, nil
}

func (b *BootstrapFewShot) accepts(score float64) bool {
	if b.Threshold != 0 {
		return score >= b.Threshold
	}
	return score > 0
}

func predictorName(predictors []NamedPredictor, p *Predict) string {
	for _, np := range predictors {
		if np.Predict == p {
			return np.Name
		}
	}
	return ""
}

func (b *BootstrapFewShot) rng() *rand.Rand {
	return rand.New(rand.NewPCG(b.Seed, b.Seed))
}

// sample picks k distinct elements of xs in random order.
func sample(rng *rand.Rand, xs []Example, k int) []Example {
	if k <= 0 {
		return nil
	}
	idx := rng.Perm(len(xs))[:k]
	out := make([]Example, k)
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}
