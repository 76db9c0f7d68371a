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

	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/api"
)

// PassThrough shows the intercepted messages and forwards them unchanged.
type PassThrough struct {
	Printer Printer
}

var _ Strategy = &PassThrough{}

func (s *PassThrough) Kind() api.StrategyKind {
	return api.StrategyPassThrough
}

func (s *PassThrough) Prepare(ctx context.Context, msgs []gollm.Message) []gollm.Message {
	klog.FromContext(ctx).V(2).Info("Intercepted LLM messages", "count", len(msgs))
	printerOrDiscard(s.Printer).PrintMessages("Intercepted LLM Messages", msgs)
	return msgs
}
