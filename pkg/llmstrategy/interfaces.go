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

// Package llmstrategy decides what happens to a message list between the
// crew and the model: it is forwarded as is, or each message is first
// rewritten by a prompt improver.
package llmstrategy

import (
	"context"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/api"
)

// Strategy prepares the messages of an LLM call before they are sent.
// Prepare never fails: a strategy that cannot transform a message keeps it.
type Strategy interface {
	Kind() api.StrategyKind
	Prepare(ctx context.Context, msgs []gollm.Message) []gollm.Message
}

// Improver rewrites one prompt into a better one.
type Improver interface {
	Improve(ctx context.Context, prompt string) (string, error)
}

// ImproverFunc adapts a function to the Improver interface.
type ImproverFunc func(ctx context.Context, prompt string) (string, error)

func (f ImproverFunc) Improve(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Printer shows intercepted messages to the user. *ui.Console implements it.
type Printer interface {
	PrintMessages(title string, msgs []gollm.Message)
	Warnf(format string, args ...any)
}

type discardPrinter struct{}

func (discardPrinter) PrintMessages(string, []gollm.Message) {}
func (discardPrinter) Warnf(string, ...any)                  {}

func printerOrDiscard(p Printer) Printer {
	if p == nil {
		return discardPrinter{}
	}
	return p
}
