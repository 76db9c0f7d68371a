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
	"os"
	"strings"

	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

const defaultGeminiModel = "gemini-2.5-flash"

func init() {
	if err := RegisterProvider("gemini", geminiFactory); err != nil {
		klog.Fatalf("Failed to register gemini provider: %v", err)
	}
}

func geminiFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewGeminiClient(ctx, opts)
}

// GeminiClient implements the gollm.Client interface for Gemini models.
type GeminiClient struct {
	client *genai.Client
}

var _ Client = &GeminiClient{}

// NewGeminiClient builds a client for the Gemini API using GEMINI_API_KEY.
func NewGeminiClient(ctx context.Context, opts ClientOptions) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingCredentials)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: createCustomHTTPClient(opts.SkipVerifySSL),
	})
	if err != nil {
		return nil, fmt.Errorf("building gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Close() error {
	return nil
}

func (c *GeminiClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultGeminiModel
	}

	system, conversation := SplitSystem(req.AllMessages())

	var contents []*genai.Content
	for _, m := range conversation {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		cfg.Temperature = &temp
	}

	klog.FromContext(ctx).V(1).Info("Calling Gemini GenerateContent", "model", model, "contents", len(contents))

	res, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, convertGeminiError(err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return nil, errors.New("received an empty response from Gemini")
	}

	var usage *Usage
	if res.UsageMetadata != nil {
		usage = &Usage{
			InputTokens:  int64(res.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(res.UsageMetadata.CandidatesTokenCount),
		}
	}
	return NewCompletionResponse(res.Text(), usage), nil
}

func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		return nil, fmt.Errorf("listing gemini models: %w", convertGeminiError(err))
	}

	var models []string
	for _, m := range page.Items {
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return models, nil
}

func convertGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return err
}
