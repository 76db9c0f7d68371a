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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// ErrMissingCredentials is returned by provider factories when the API key
// (or equivalent) is not configured.
var ErrMissingCredentials = errors.New("missing LLM credentials")

var globalRegistry registry

type registry struct {
	mutex     sync.Mutex
	providers map[string]FactoryFunc
}

// ClientOptions are the options shared by every provider factory.
type ClientOptions struct {
	// URL is the parsed provider id, e.g. "openai://host/v1".
	URL *url.URL

	SkipVerifySSL bool
}

// Option configures ClientOptions.
type Option func(*ClientOptions)

// WithSkipVerifySSL disables TLS verification for the provider's HTTP client.
func WithSkipVerifySSL() Option {
	return func(o *ClientOptions) {
		o.SkipVerifySSL = true
	}
}

type FactoryFunc func(ctx context.Context, opts ClientOptions) (Client, error)

func RegisterProvider(id string, factoryFunc FactoryFunc) error {
	return globalRegistry.RegisterProvider(id, factoryFunc)
}

// Providers returns the registered provider ids, sorted.
func Providers() []string {
	return globalRegistry.list()
}

func (r *registry) RegisterProvider(id string, factoryFunc FactoryFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.providers == nil {
		r.providers = make(map[string]FactoryFunc)
	}
	_, exists := r.providers[id]
	if exists {
		return fmt.Errorf("provider %q is already registered", id)
	}
	r.providers[id] = factoryFunc
	return nil
}

func (r *registry) list() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *registry) NewClient(ctx context.Context, providerID string, opts ...Option) (Client, error) {
	// providerID can be just an ID, for example "anthropic" instead of "anthropic://"
	if !strings.Contains(providerID, "/") && !strings.Contains(providerID, ":") {
		providerID = providerID + "://"
	}

	u, err := url.Parse(providerID)
	if err != nil {
		return nil, fmt.Errorf("parsing provider id %q: %w", providerID, err)
	}

	r.mutex.Lock()
	factoryFunc := r.providers[u.Scheme]
	r.mutex.Unlock()
	if factoryFunc == nil {
		return nil, fmt.Errorf("provider %q not registered", u.Scheme)
	}

	clientOpts := ClientOptions{URL: u}
	for _, opt := range opts {
		opt(&clientOpts)
	}
	return factoryFunc(ctx, clientOpts)
}

// NewClient builds a Client based on the LLM_CLIENT env var or the provided providerID.
// ProviderID (if not empty) overrides the provider from LLM_CLIENT env var.
func NewClient(ctx context.Context, providerID string, opts ...Option) (Client, error) {
	if providerID == "" {
		s := os.Getenv("LLM_CLIENT")
		if s == "" {
			return nil, fmt.Errorf("LLM_CLIENT is not set")
		}
		providerID = s
	}

	return globalRegistry.NewClient(ctx, providerID, opts...)
}

// ParseModelRef splits a "provider/model" reference. A reference without a
// provider prefix returns defaultProvider.
func ParseModelRef(ref, defaultProvider string) (provider, model string) {
	provider, model, found := strings.Cut(ref, "/")
	if !found {
		return defaultProvider, ref
	}
	return provider, model
}

// createCustomHTTPClient returns the HTTP client handed to provider SDKs.
func createCustomHTTPClient(skipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipVerify {
		klog.Warning("TLS certificate verification is disabled for LLM requests")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

// APIError represents an error returned by the LLM client.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API Error: Status=%d, Message='%s', OriginalErr=%v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API Error: Status=%d, Message='%s'", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryableFunc defines the signature for functions that check if an error is retryable.
type IsRetryableFunc func(error) bool

// DefaultIsRetryableError provides a default implementation based on common HTTP codes and network errors.
func DefaultIsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusConflict, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout,
			529: // anthropic "overloaded"
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:    5,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         true,
}
