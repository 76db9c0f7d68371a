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
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"k8s.io/klog/v2"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"

	defaultAnthropicMaxTokens = 4096
)

func init() {
	if err := RegisterProvider("anthropic", anthropicFactory); err != nil {
		klog.Fatalf("Failed to register anthropic provider: %v", err)
	}
	if err := RegisterProvider("claude", anthropicFactory); err != nil {
		klog.Warningf("Failed to register anthropic provider alias %q: %v", "claude", err)
	}
}

func anthropicFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewAnthropicClient(ctx, opts)
}

// AnthropicClient implements the gollm.Client interface for Claude models.
type AnthropicClient struct {
	client anthropic.Client
}

var _ Client = &AnthropicClient{}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// It reads ANTHROPIC_API_KEY and, optionally, ANTHROPIC_BASE_URL.
func NewAnthropicClient(ctx context.Context, opts ClientOptions) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY environment variable not set", ErrMissingCredentials)
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(createCustomHTTPClient(opts.SkipVerifySSL)),
		// Retries are handled by NewRetryClient.
		option.WithMaxRetries(0),
	}
	if baseURL := os.Getenv("ANTHROPIC_BASE_URL"); baseURL != "" {
		klog.Infof("Using custom Anthropic base URL: %s", baseURL)
		options = append(options, option.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(options...),
	}, nil
}

func (c *AnthropicClient) Close() error {
	return nil
}

// GenerateCompletion sends the request to the Messages API. System messages
// are lifted into the system parameter.
func (c *AnthropicClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	log := klog.FromContext(ctx)

	model := req.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, conversation := SplitSystem(req.AllMessages())
	if len(conversation) == 0 {
		return nil, errors.New("anthropic: request has no user messages")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(conversation),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	log.V(1).Info("Calling Anthropic Messages API", "model", model, "messages", len(params.Messages))

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, convertAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("received an empty response from Anthropic")
	}

	return NewCompletionResponse(sb.String(), &Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}), nil
}

func (c *AnthropicClient) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	iter := c.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		models = append(models, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing anthropic models: %w", convertAnthropicError(err))
	}
	return models, nil
}

// toAnthropicMessages converts the conversation, merging consecutive turns of
// the same role because the API requires alternation.
func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var lastRole Role
	for _, m := range msgs {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		block := anthropic.NewTextBlock(m.Content)
		if len(out) > 0 && role == lastRole {
			out[len(out)-1].Content = append(out[len(out)-1].Content, block)
			continue
		}
		if role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
		lastRole = role
	}
	return out
}

func convertAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    http.StatusText(apiErr.StatusCode),
			Err:        err,
		}
	}
	return err
}
