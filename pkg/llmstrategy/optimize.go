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

package llmstrategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/api"
	"github.com/crewtune/crewtune/pkg/journal"
)

var errEmptyImprovement = errors.New("improver returned an empty prompt")

// Optimize replaces the content of every message with the improver's
// rewrite of it. Roles, count and order are preserved. A message whose
// rewrite fails or comes back empty is forwarded with its original content.
type Optimize struct {
	Improver Improver
	Printer  Printer
}

var _ Strategy = &Optimize{}

func (s *Optimize) Kind() api.StrategyKind {
	return api.StrategyOptimize
}

func (s *Optimize) Prepare(ctx context.Context, msgs []gollm.Message) []gollm.Message {
	log := klog.FromContext(ctx)
	printer := printerOrDiscard(s.Printer)

	printer.PrintMessages("Messages before prompt optimization", msgs)

	out := make([]gollm.Message, len(msgs))
	for i, msg := range msgs {
		improved, err := s.improve(ctx, msg.Content)
		if err != nil {
			log.Error(err, "optimizing message, keeping original content", "index", i, "role", msg.Role)
			printer.Warnf("Error optimizing message: %v. Keeping original content for role '%s'.", err, msg.Role)
			journal.Record(ctx, journal.ActionRewriteFallback, "", map[string]any{
				"index": i,
				"role":  msg.Role,
				"error": err.Error(),
			})
			out[i] = msg
			continue
		}
		out[i] = gollm.Message{Role: msg.Role, Content: improved}
	}

	journal.Record(ctx, journal.ActionMessagesRewrite, "", map[string]any{
		"before": msgs,
		"after":  out,
	})
	printer.PrintMessages("Improved prompt sent to LLM after optimization", out)
	return out
}

func (s *Optimize) improve(ctx context.Context, content string) (improved string, err error) {
	if s.Improver == nil {
		return "", errors.New("no prompt improver configured")
	}
	// A failing improver must never take the crew down with it.
	defer func() {
		if r := recover(); r != nil {
			improved, err = "", &panicError{value: r}
		}
	}()

	improved, err = s.Improver.Improve(ctx, content)
	if err != nil {
		return "", err
	}
	improved = strings.TrimSpace(improved)
	if improved == "" {
		return "", errEmptyImprovement
	}
	return improved, nil
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("improver panicked: %v", e.value)
}
