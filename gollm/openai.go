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

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"
)

const (
	defaultOpenAIModel = "gpt-4.1"
	defaultGrokModel   = "grok-3-beta"
	defaultGrokBaseURL = "https://api.x.ai/v1"
)

// init registers the OpenAI provider, its aliases, and Grok, which speaks
// the same wire protocol.
func init() {
	if err := RegisterProvider("openai", newOpenAIClientFactory); err != nil {
		klog.Fatalf("Failed to register openai provider: %v", err)
	}

	aliases := []string{"openai-compatible"}
	for _, alias := range aliases {
		if err := RegisterProvider(alias, newOpenAIClientFactory); err != nil {
			klog.Warningf("Failed to register openai provider alias %q: %v", alias, err)
		}
	}

	if err := RegisterProvider("grok", newGrokClientFactory); err != nil {
		klog.Fatalf("Failed to register grok provider: %v", err)
	}
}

func newOpenAIClientFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewOpenAIClient(ctx, opts)
}

func newGrokClientFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewGrokClient(ctx, opts)
}

// OpenAIClient implements the gollm.Client interface for OpenAI models and
// OpenAI-compatible endpoints.
type OpenAIClient struct {
	client       openai.Client
	defaultModel string
}

var _ Client = &OpenAIClient{}

// NewOpenAIClient reads OPENAI_API_KEY, OPENAI_ENDPOINT (or OPENAI_API_BASE)
// and OPENAI_MODEL from the environment.
func NewOpenAIClient(ctx context.Context, opts ClientOptions) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY environment variable not set", ErrMissingCredentials)
	}

	baseURL := os.Getenv("OPENAI_ENDPOINT")
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_API_BASE")
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultOpenAIModel
	}

	return newOpenAICompatibleClient(apiKey, baseURL, model, opts), nil
}

// NewGrokClient creates a client for X.AI's Grok models using GROK_API_KEY
// and, optionally, GROK_ENDPOINT.
func NewGrokClient(ctx context.Context, opts ClientOptions) (*OpenAIClient, error) {
	apiKey := os.Getenv("GROK_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GROK_API_KEY environment variable not set", ErrMissingCredentials)
	}

	endpoint := defaultGrokBaseURL
	if customEndpoint := os.Getenv("GROK_ENDPOINT"); customEndpoint != "" {
		endpoint = customEndpoint
	}
	return newOpenAICompatibleClient(apiKey, endpoint, defaultGrokModel, opts), nil
}

func newOpenAICompatibleClient(apiKey, baseURL, defaultModel string, opts ClientOptions) *OpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(createCustomHTTPClient(opts.SkipVerifySSL)),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		klog.Infof("Using custom OpenAI base URL: %s", baseURL)
		options = append(options, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client:       openai.NewClient(options...),
		defaultModel: defaultModel,
	}
}

func (c *OpenAIClient) Close() error {
	return nil
}

// GenerateCompletion sends the conversation to the Chat Completions API.
func (c *OpenAIClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	klog.FromContext(ctx).V(1).Info("OpenAI GenerateCompletion called", "model", model)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req.AllMessages()),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OpenAI completion: %w", convertOpenAIError(err))
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, errors.New("received an empty response from OpenAI")
	}

	return NewCompletionResponse(completion.Choices[0].Message.Content, &Usage{
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}), nil
}

// ListModels returns the model IDs. Not every OpenAI-compatible provider
// implements this endpoint.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	res, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing models from OpenAI: %w", convertOpenAIError(err))
	}

	modelIDs := make([]string, 0, len(res.Data))
	for _, model := range res.Data {
		modelIDs = append(modelIDs, model.ID)
	}
	return modelIDs, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func convertOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    http.StatusText(apiErr.StatusCode),
			Err:        err,
		}
	}
	return err
}
