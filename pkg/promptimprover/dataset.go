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
	_ "embed"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/crewtune/crewtune/pkg/optimizer"
)

var (
	//go:embed data/examples.yaml
	examplesYAML []byte

	//go:embed data/sample_prompt.txt
	samplePrompt string
)

type pair struct {
	Raw      string `json:"raw"`
	Improved string `json:"improved"`
}

type datasetFile struct {
	Trainset []pair `json:"trainset"`
	Devset   []pair `json:"devset"`
}

// Dataset holds the training and development examples for a variant.
type Dataset struct {
	Train []optimizer.Example
	Dev   []optimizer.Example
}

// DefaultDataset returns the bundled examples in v's field naming.
func DefaultDataset(v Variant) (*Dataset, error) {
	return parseDataset(v, examplesYAML)
}

// LoadDataset reads a dataset file with "trainset" and "devset" lists of
// {raw, improved} pairs.
func LoadDataset(v Variant, path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return parseDataset(v, b)
}

func parseDataset(v Variant, b []byte) (*Dataset, error) {
	var f datasetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	if len(f.Trainset) == 0 {
		return nil, fmt.Errorf("dataset has no training examples")
	}

	ds := &Dataset{}
	for _, p := range f.Trainset {
		ds.Train = append(ds.Train, v.Example(p.Raw, p.Improved))
	}
	for _, p := range f.Devset {
		ds.Dev = append(ds.Dev, v.Example(p.Raw, p.Improved))
	}
	return ds, nil
}

// SamplePrompt is an unseen prompt used to demonstrate a compiled program.
func SamplePrompt() string {
	return samplePrompt
}
