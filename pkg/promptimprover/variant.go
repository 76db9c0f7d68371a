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

// Package promptimprover is the prompt-rewriting program used by the
// optimize strategy: an ImprovePrompt predictor, an AI-judged metric, the
// bundled training data and a scoped loader for compiled artifacts.
package promptimprover

import (
	"strings"
	"text/template"

	"github.com/crewtune/crewtune/pkg/optimizer"
)

// Variant selects the field naming and judge questions of the program.
type Variant struct {
	Name        string
	Signature   optimizer.Signature
	InputField  string
	OutputField string

	clarity *template.Template
}

var (
	// CrewAI rewrites prompts assembled by the crew runner.
	CrewAI = Variant{
		Name:        "crewai",
		InputField:  "crewai_prompt",
		OutputField: "dspy_improved_prompt",
		Signature: optimizer.Signature{
			Name: "ImprovePrompt",
			Instructions: "Transforms a raw, generic, or vaguely defined prompt constructed by a crew prompt engine into a highly structured,\n" +
				"explicit, and effective prompt designed for optimal performance by an LLM.\n" +
				"This prompt optimization can include enhancing clarity, adding specific constraints, defining desired output formats,\n" +
				"and providing illustrative examples to guide the LLM's response generation.",
			Inputs: []optimizer.Field{{
				Name: "crewai_prompt",
				Description: "The initial, often loosely defined, or boilerplate-laden crew prompt with system and user parts. " +
					"This prompt typically provides a general task description, basic persona, and minimal output expectations, " +
					"and is stitched together from the YAML description of agents and tasks plus inputs and a few prompt template (boilerplate) lines.",
			}},
			Outputs: []optimizer.Field{{
				Name:        "dspy_improved_prompt",
				Description: "A meticulously crafted and expanded version of the crew prompt. " + improvedDescription,
			}},
		},
		clarity: mustTemplate("crewai-clarity", crewAIClarityQuestion),
	}

	// Intro is the stand-alone rewriting program.
	Intro = Variant{
		Name:        "intro",
		InputField:  "raw_prompt",
		OutputField: "improved_prompt",
		Signature: optimizer.Signature{
			Name: "PromptOptimizer",
			Instructions: "Transforms a raw, generic, or vaguely defined prompt into a highly structured,\n" +
				"explicit, and effective prompt designed for optimal performance by a Large Language Model (LLM).\n" +
				"This process involves enhancing clarity, adding specific constraints, defining desired output formats,\n" +
				"and providing illustrative examples to guide the LLM's response generation.",
			Inputs: []optimizer.Field{{
				Name: "raw_prompt",
				Description: "The initial, often loosely defined, or boilerplate-laden prompt with system and user parts. " +
					"This prompt typically provides a general task description, basic persona, and minimal output expectations, " +
					"similar to how a prompt might be initially structured by a crew framework before refinement.",
			}},
			Outputs: []optimizer.Field{{
				Name:        "improved_prompt",
				Description: "A meticulously crafted and expanded version of the raw prompt. " + improvedDescription,
			}},
		},
		clarity: mustTemplate("intro-clarity", introClarityQuestion),
	}
)

const improvedDescription = "This improved prompt has enhanced clarity and adds specific constraints like incorporates explicit instructions for the LLM's role, objectives, context, " +
	"detailed task directives, precise requirements (e.g., length, content constraints), " +
	"clear formatting guidelines, and relevant examples among others. " +
	"The aim is to eliminate ambiguity and provide comprehensive guidance for generating a high-quality, " +
	"predictable, and relevant output from the LLM."

// Variants lists the known variants by name.
func Variants() map[string]Variant {
	return map[string]Variant{CrewAI.Name: CrewAI, Intro.Name: Intro}
}

// Example builds a training example in this variant's field naming.
func (v Variant) Example(raw, improved string) optimizer.Example {
	return optimizer.NewExample(map[string]any{
		v.InputField:  raw,
		v.OutputField: improved,
	}).WithInputs(v.InputField)
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(strings.TrimSpace(text)))
}
