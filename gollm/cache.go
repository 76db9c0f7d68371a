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

package gollm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"
)

// CacheStore persists completions keyed by a request fingerprint.
type CacheStore interface {
	// Get returns the cached response text, or ok=false on a miss.
	Get(ctx context.Context, key string) (text string, ok bool, err error)
	Put(ctx context.Context, key string, model string, text string) error
}

// CachingClient serves repeated identical requests from a CacheStore.
type CachingClient struct {
	underlying Client
	store      CacheStore
}

var _ Client = &CachingClient{}

func NewCachingClient(underlying Client, store CacheStore) *CachingClient {
	return &CachingClient{underlying: underlying, store: store}
}

// CacheKey returns the fingerprint of a request: the SHA-256 of its
// canonical JSON form.
func CacheKey(req *CompletionRequest) (string, error) {
	canonical := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		MaxTokens   int       `json:"maxTokens"`
		Temperature *float64  `json:"temperature"`
	}{
		Model:       req.Model,
		Messages:    req.AllMessages(),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encoding request for cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (c *CachingClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	log := klog.FromContext(ctx)

	key, err := CacheKey(req)
	if err != nil {
		return nil, err
	}

	text, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken cache must not break the call.
		log.Error(err, "reading LLM cache", "key", key)
	} else if ok {
		log.V(2).Info("LLM cache hit", "key", key, "model", req.Model)
		return NewCompletionResponse(text, nil), nil
	}

	resp, err := c.underlying.GenerateCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(ctx, key, req.Model, resp.Response()); err != nil {
		log.Error(err, "writing LLM cache", "key", key)
	}
	return resp, nil
}

func (c *CachingClient) ListModels(ctx context.Context) ([]string, error) {
	return c.underlying.ListModels(ctx)
}

func (c *CachingClient) Close() error {
	return c.underlying.Close()
}
