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

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/internal/llmcache"
	"github.com/crewtune/crewtune/pkg/optimizer"
)

const historyLimit = 50

// llmStack owns one client per provider, each wrapped with retries, the
// completion cache and call history.
type llmStack struct {
	opt Options

	mu        sync.Mutex
	clients   map[string]*gollm.HistoryClient
	cache     *llmcache.Store
	cacheOpen bool
}

func newLLMStack(opt Options) *llmStack {
	return &llmStack{opt: opt, clients: map[string]*gollm.HistoryClient{}}
}

// client returns the decorated client for provider, creating it on first use.
func (s *llmStack) client(ctx context.Context, provider string) (*gollm.HistoryClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[provider]; ok {
		return c, nil
	}

	var opts []gollm.Option
	if s.opt.SkipVerifySSL {
		opts = append(opts, gollm.WithSkipVerifySSL())
	}
	base, err := gollm.NewClient(ctx, provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	var c gollm.Client = gollm.NewRetryClient(base, gollm.DefaultRetryConfig, nil)
	store, err := s.cacheStore()
	if err != nil {
		base.Close()
		return nil, err
	}
	if store != nil {
		c = gollm.NewCachingClient(c, store)
	}

	hc := gollm.NewHistoryClient(c, historyLimit)
	s.clients[provider] = hc
	return hc, nil
}

// cacheStore opens the completion cache once. It returns nil when caching
// is disabled.
func (s *llmStack) cacheStore() (*llmcache.Store, error) {
	if s.opt.NoCache {
		return nil, nil
	}
	if s.cacheOpen {
		return s.cache, nil
	}
	store, path, err := openCache(s.opt)
	if err != nil {
		return nil, err
	}
	klog.V(1).InfoS("Opened completion cache", "path", path)
	s.cache, s.cacheOpen = store, true
	return store, nil
}

// lm builds an optimizer LM for a "provider/model" reference.
func (s *llmStack) lm(ctx context.Context, ref string) (*optimizer.LM, error) {
	provider, model := gollm.ParseModelRef(ref, s.opt.ProviderID)
	c, err := s.client(ctx, provider)
	if err != nil {
		return nil, err
	}
	return &optimizer.LM{Client: c, Model: model, MaxTokens: s.opt.MaxTokens}, nil
}

func (s *llmStack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, c := range s.clients {
		errs = append(errs, c.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return errors.Join(errs...)
}

// providersOf returns the providers named by model references.
func providersOf(defaultProvider string, refs ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		p, _ := gollm.ParseModelRef(ref, defaultProvider)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
