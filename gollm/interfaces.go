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
	"io"
	"strings"
)

// Client is a client for a language model.
type Client interface {
	io.Closer

	// GenerateCompletion generates a single completion for the given messages.
	// Providers see the full message list; there is no server-side session.
	GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error)

	// ListModels lists the models available in the LLM.
	ListModels(ctx context.Context) ([]string, error)
}

// Role is the speaker of a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a request to generate a completion.
type CompletionRequest struct {
	Model string `json:"model,omitempty"`

	// Messages is the ordered conversation sent to the model.
	Messages []Message `json:"messages,omitempty"`

	// Prompt, when set, is appended as a trailing user message.
	Prompt string `json:"prompt,omitempty"`

	// MaxTokens bounds the response length. Zero selects the provider default.
	MaxTokens int `json:"maxTokens,omitempty"`

	// Temperature is left to the provider when nil.
	Temperature *float64 `json:"temperature,omitempty"`
}

// AllMessages returns the messages of the request with Prompt folded in.
func (r *CompletionRequest) AllMessages() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	msgs = append(msgs, r.Messages...)
	if r.Prompt != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: r.Prompt})
	}
	return msgs
}

// SplitSystem separates the system messages from the rest of the conversation.
// Several providers take the system prompt as a separate parameter.
func SplitSystem(msgs []Message) (system string, rest []Message) {
	var parts []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}

// CompletionResponse is a response from the GenerateCompletion method.
type CompletionResponse interface {
	Response() string
	UsageMetadata() any
}

// Usage is the token accounting reported by providers that expose it.
type Usage struct {
	InputTokens  int64 `json:"inputTokens,omitempty"`
	OutputTokens int64 `json:"outputTokens,omitempty"`
}

// simpleCompletionResponse is the CompletionResponse returned by all providers.
type simpleCompletionResponse struct {
	content string
	usage   *Usage
}

// NewCompletionResponse builds a CompletionResponse from plain text.
func NewCompletionResponse(content string, usage *Usage) CompletionResponse {
	return &simpleCompletionResponse{content: content, usage: usage}
}

func (r *simpleCompletionResponse) Response() string {
	return r.content
}

func (r *simpleCompletionResponse) UsageMetadata() any {
	if r.usage == nil {
		return nil
	}
	return r.usage
}
