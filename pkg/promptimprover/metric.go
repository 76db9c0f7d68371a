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
	"strings"
	"text/template"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/optimizer"
)

// AssessSignature asks a judge model a yes/no question about a rewrite.
var AssessSignature = optimizer.Signature{
	Name:         "AssessPromptImprovement",
	Instructions: "Assess the quality of an improved prompt.",
	Inputs: []optimizer.Field{
		{Name: "assessed_raw_prompt", Description: "The original prompt before improvement."},
		{Name: "assessed_improved_prompt", Description: "The prompt that was generated by the rewriting program based on the original prompt."},
		{Name: "assessment_question", Description: "The specific question to evaluate the improved prompt."},
	},
	Outputs: []optimizer.Field{
		{Name: "assessment_answer", Description: "True if the improved prompt meets the criteria, False otherwise.", Type: optimizer.FieldBool},
	},
}

const crewAIClarityQuestion = `
Assess if the 'predicted_improved_prompt' successfully clarifies and structures the original 'raw_prompt' by using effective formatting and clear instructions.

- **Raw Prompt:**
---
{{.Raw}}
---

- **Predicted Prompt:**
---
{{.Predicted}}
---

- **Expected Prompt (Ideal):**
---
{{.Expected}}
---

Considering the raw prompt's content, is the predicted prompt's format, use of headings, and overall clarity as good as the ideal expected prompt's? Answer True or False.
`

const introClarityQuestion = `
Evaluate the structural integrity and clarity of the 'predicted_improved_prompt'.

Predicted Improved Prompt:
---
{{.Predicted}}
---

Compared to the high-quality format and clarity of the 'expected_improved_prompt':
---
{{.Expected}}
---

Is the 'predicted_improved_prompt' well-structured, easy to parse, and clear in its instructions, using effective formatting (e.g., bolding, bullet points, clear sections) similar to the 'expected_improved_prompt'?
Respond with True or False.
`

const completenessQuestion = `
Evaluate the instructional completeness and specificity of the 'predicted_improved_prompt'.

Raw Prompt:
---
{{.Raw}}
---

Predicted Improved Prompt:
---
{{.Predicted}}
---

Compared to the comprehensive and specific instructions of the 'expected_improved_prompt':
---
{{.Expected}}
---

Does the 'predicted_improved_prompt' sufficiently elaborate on the generic requirements from the 'raw_prompt' by adding specific constraints, clear formatting guidance, and concrete examples to ensure the LLM generates the *desired final output* effectively, mirroring the thoroughness of the 'expected_improved_prompt'?
Respond with True or False.
`

var completeness = mustTemplate("completeness", completenessQuestion)

type questionData struct {
	Raw       string
	Predicted string
	Expected  string
}

// Questions renders the two judge questions for one prediction.
func (v Variant) Questions(example optimizer.Example, pred optimizer.Prediction) ([]string, error) {
	data := questionData{
		Raw:       example.String(v.InputField),
		Predicted: pred.String(v.OutputField),
		Expected:  example.String(v.OutputField),
	}
	var out []string
	for _, tmpl := range []*template.Template{v.clarity, completeness} {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return nil, fmt.Errorf("rendering %s question: %w", tmpl.Name(), err)
		}
		out = append(out, sb.String())
	}
	return out, nil
}

// NewMetric returns a metric that asks judge both questions and scores 1
// only when every answer is true. A nil judge uses the model in the call
// context.
func NewMetric(v Variant, judge *optimizer.LM) optimizer.Metric {
	assess := optimizer.NewPredict(AssessSignature)
	assess.LM = judge

	return func(ctx context.Context, example optimizer.Example, pred optimizer.Prediction, trace *optimizer.Trace) (float64, error) {
		log := klog.FromContext(ctx)

		questions, err := v.Questions(example, pred)
		if err != nil {
			return 0, err
		}

		passed := 0
		for i, q := range questions {
			verdict, err := assess.Forward(ctx, map[string]any{
				"assessed_raw_prompt":      example.String(v.InputField),
				"assessed_improved_prompt": pred.String(v.OutputField),
				"assessment_question":      q,
			})
			if err != nil {
				return 0, fmt.Errorf("judging question %d: %w", i+1, err)
			}
			if verdict.Bool("assessment_answer") {
				passed++
			}
		}
		log.V(2).Info("Judged rewrite", "variant", v.Name, "passed", passed, "questions", len(questions), "traced", trace != nil)

		if passed == len(questions) {
			return 1, nil
		}
		return 0, nil
	}
}
