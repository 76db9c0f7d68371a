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

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("ollama", ollamaFactory); err != nil {
		klog.Fatalf("Failed to register ollama provider: %v", err)
	}
}

func ollamaFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewOllamaClient(ctx, opts)
}

const (
	defaultOllamaModel = "gemma3:latest"
)

type OllamaClient struct {
	client *api.Client
}

var _ Client = &OllamaClient{}

// NewOllamaClient creates a client for the Ollama server at OLLAMA_HOST.
// Local servers need no credentials.
func NewOllamaClient(ctx context.Context, opts ClientOptions) (*OllamaClient, error) {
	httpClient := createCustomHTTPClient(opts.SkipVerifySSL)
	client := api.NewClient(envconfig.Host(), httpClient)

	return &OllamaClient{
		client: client,
	}, nil
}

func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) GenerateCompletion(ctx context.Context, request *CompletionRequest) (CompletionResponse, error) {
	model := request.Model
	if model == "" {
		model = defaultOllamaModel
	}

	var messages []api.Message
	for _, m := range request.AllMessages() {
		messages = append(messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   ptrTo(false),
		Options:  map[string]any{},
	}
	if request.MaxTokens > 0 {
		req.Options["num_predict"] = request.MaxTokens
	}
	if request.Temperature != nil {
		req.Options["temperature"] = *request.Temperature
	}

	var response *simpleCompletionResponse
	respFunc := func(resp api.ChatResponse) error {
		response = &simpleCompletionResponse{
			content: resp.Message.Content,
			usage: &Usage{
				InputTokens:  int64(resp.PromptEvalCount),
				OutputTokens: int64(resp.EvalCount),
			},
		}
		return nil
	}

	if err := c.client.Chat(ctx, req, respFunc); err != nil {
		return nil, convertOllamaError(err)
	}
	if response == nil {
		return nil, errors.New("received no response from ollama")
	}
	return response, nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	modelResponse, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ollama models: %w", convertOllamaError(err))
	}

	var models []string
	for _, model := range modelResponse.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

func convertOllamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &APIError{StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage, Err: err}
	}
	return err
}

func ptrTo[T any](t T) *T {
	return &t
}
