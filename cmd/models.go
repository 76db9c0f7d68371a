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

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/gollm"
)

func buildModelsCommand(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the --llm-provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsCommand(cmd.Context(), *opt)
		},
	}
}

func runModelsCommand(ctx context.Context, opt Options) error {
	fmt.Printf("Registered providers: %s\n\n", strings.Join(gollm.Providers(), ", "))

	if err := requireCredentials(opt.ProviderID); err != nil {
		return err
	}
	var opts []gollm.Option
	if opt.SkipVerifySSL {
		opts = append(opts, gollm.WithSkipVerifySSL())
	}
	client, err := gollm.NewClient(ctx, opt.ProviderID, opts...)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	defer client.Close()

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	fmt.Printf("Models available from %s:\n", opt.ProviderID)
	for _, m := range models {
		fmt.Printf("  %s\n", m)
	}
	return nil
}
