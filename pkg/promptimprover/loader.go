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
	"fmt"
	"io/fs"
	"sync"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/pkg/journal"
	"github.com/crewtune/crewtune/pkg/optimizer"
)

// Source says where a loaded module came from.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceArtifact Source = "artifact"
	SourceTrained  Source = "trained"
)

// Loader hands out a compiled Module, reusing it for its own lifetime.
// On first use it reads ArtifactPath, and when that is missing or unusable
// it trains a new module, saves it there and then runs Evaluate.
type Loader struct {
	// ArtifactPath is where the compiled module is stored. Empty disables
	// persistence.
	ArtifactPath string
	// Retrain ignores an existing artifact.
	Retrain bool

	New   func() *Module
	Train func(ctx context.Context, student *Module) (*Module, error)

	// Evaluate, when set, runs on a freshly trained module after it has been
	// saved. A failure is returned from Get but leaves the artifact in place.
	Evaluate func(ctx context.Context, m *Module) error

	// Metadata is written alongside the trained module.
	Metadata optimizer.Metadata

	mu     sync.Mutex
	cached *Module
}

// Get returns the module and where it came from.
func (l *Loader) Get(ctx context.Context) (*Module, Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, SourceMemory, nil
	}
	if l.New == nil {
		return nil, "", errors.New("loader has no module constructor")
	}

	log := klog.FromContext(ctx)

	if l.ArtifactPath != "" && !l.Retrain {
		m := l.New()
		meta, err := optimizer.Load(l.ArtifactPath, m)
		switch {
		case err == nil:
			log.Info("Loaded compiled prompt improver", "path", l.ArtifactPath, "createdAt", meta.CreatedAt, "demos", len(m.Demos()))
			journal.Record(ctx, journal.ActionArtifactLoaded, "", map[string]any{"path": l.ArtifactPath, "demos": len(m.Demos())})
			l.cached = m
			return m, SourceArtifact, nil
		case errors.Is(err, fs.ErrNotExist):
			log.Info("No compiled prompt improver found, training", "path", l.ArtifactPath)
		default:
			log.Error(err, "Ignoring unusable artifact, retraining", "path", l.ArtifactPath)
		}
	}

	if l.Train == nil {
		return nil, "", errors.New("no artifact available and loader cannot train")
	}
	m, err := l.Train(ctx, l.New())
	if err != nil {
		return nil, "", err
	}

	if l.ArtifactPath != "" {
		if err := optimizer.Save(l.ArtifactPath, m, l.Metadata); err != nil {
			return nil, "", fmt.Errorf("saving compiled prompt improver: %w", err)
		}
		log.Info("Saved compiled prompt improver", "path", l.ArtifactPath)
		journal.Record(ctx, journal.ActionArtifactSaved, "", map[string]any{"path": l.ArtifactPath, "demos": len(m.Demos())})
	}

	if l.Evaluate != nil {
		if err := l.Evaluate(ctx, m); err != nil {
			return nil, "", err
		}
	}

	l.cached = m
	return m, SourceTrained, nil
}

// Reset drops the cached module so the next Get goes back to disk.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
}
