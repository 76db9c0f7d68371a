// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gollm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"k8s.io/klog/v2"
)

// Retry executes the provided operation with retries, returning the result and error.
func Retry[T any](
	ctx context.Context,
	config RetryConfig,
	isRetryable IsRetryableFunc,
	operation func(ctx context.Context) (T, error),
) (T, error) {
	var lastErr error
	var zero T

	log := klog.FromContext(ctx)

	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Prefer the context error once the caller has given up.
		select {
		case <-ctx.Done():
			log.Info("Context cancelled after failed attempt", "attempt", attempt)
			return zero, ctx.Err()
		default:
		}

		if !isRetryable(lastErr) {
			log.V(2).Info("Attempt failed with non-retryable error", "attempt", attempt, "error", lastErr)
			return zero, lastErr
		}

		log.Info("Attempt failed with retryable error", "attempt", attempt, "error", lastErr)

		if attempt == config.MaxAttempts {
			break
		}

		waitTime := backoff
		if config.Jitter {
			waitTime += time.Duration(rand.Float64() * float64(backoff) / 2)
		}

		log.Info("Waiting before next attempt", "waitTime", waitTime, "attempt", attempt+1, "maxAttempts", config.MaxAttempts)

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			log.Info("Context cancelled while waiting for retry", "attempt", attempt)
			return zero, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// retryClient is a decorator that adds retry logic to any Client implementation.
type retryClient struct {
	underlying  Client
	config      RetryConfig
	isRetryable IsRetryableFunc
}

var _ Client = &retryClient{}

// NewRetryClient wraps the given client so that GenerateCompletion and
// ListModels are retried on transient provider errors.
func NewRetryClient(underlying Client, config RetryConfig, isRetryable IsRetryableFunc) Client {
	if isRetryable == nil {
		isRetryable = DefaultIsRetryableError
	}
	return &retryClient{
		underlying:  underlying,
		config:      config,
		isRetryable: isRetryable,
	}
}

func (rc *retryClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	return Retry(ctx, rc.config, rc.isRetryable, func(ctx context.Context) (CompletionResponse, error) {
		return rc.underlying.GenerateCompletion(ctx, req)
	})
}

func (rc *retryClient) ListModels(ctx context.Context) ([]string, error) {
	return Retry(ctx, rc.config, rc.isRetryable, func(ctx context.Context) ([]string, error) {
		return rc.underlying.ListModels(ctx)
	})
}

func (rc *retryClient) Close() error {
	return rc.underlying.Close()
}
