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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metadataKey = "metadata"

type predictorState struct {
	Demos     []Example `json:"demos"`
	Signature Signature `json:"signature"`
}

// Metadata describes how an artifact was produced.
type Metadata struct {
	CreatedAt time.Time         `json:"createdAt"`
	Optimizer string            `json:"optimizer,omitempty"`
	Model     string            `json:"model,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Save writes the learned state (demos and signatures) of every predictor of
// m to path as JSON. The file is replaced atomically.
func Save(path string, m Module, meta Metadata) error {
	doc := map[string]any{}
	for _, np := range m.NamedPredictors() {
		if np.Name == metadataKey {
			return fmt.Errorf("predictor name %q is reserved", metadataKey)
		}
		doc[np.Name] = predictorState{Demos: np.Predict.Demos, Signature: np.Predict.Signature}
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	doc[metadataKey] = meta

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing artifact %q: %w", path, err)
	}
	return nil
}

// Load restores predictor state saved by Save into m. Every predictor of m
// must be present with a compatible signature.
func Load(path string, m Module) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing artifact %q: %w", path, err)
	}

	// Decode everything before touching m so a bad file leaves it unchanged.
	states := map[string]predictorState{}
	for _, np := range m.NamedPredictors() {
		raw, ok := doc[np.Name]
		if !ok {
			return nil, fmt.Errorf("artifact %q has no state for predictor %q", path, np.Name)
		}
		var st predictorState
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("parsing predictor %q: %w", np.Name, err)
		}
		if !np.Predict.Signature.Compatible(st.Signature) {
			return nil, fmt.Errorf("artifact %q: predictor %q was saved with a different signature", path, np.Name)
		}
		states[np.Name] = st
	}

	for _, np := range m.NamedPredictors() {
		st := states[np.Name]
		np.Predict.Demos = st.Demos
		if st.Signature.Instructions != "" {
			np.Predict.Signature.Instructions = st.Signature.Instructions
		}
	}

	meta := &Metadata{}
	if raw, ok := doc[metadataKey]; ok {
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("parsing artifact metadata: %w", err)
		}
	}
	return meta, nil
}
