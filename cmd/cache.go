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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/internal/llmcache"
)

func buildCacheCommand(opt *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the completion cache at --cache-path",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show the number of cached completions and cache hits",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return handleCacheStats(cmd.Context(), *opt, os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete every cached completion",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return handleCachePurge(cmd.Context(), *opt, os.Stdout)
			},
		},
	)
	return cmd
}

func openCache(opt Options) (*llmcache.Store, string, error) {
	path, err := expandPathPlaceholders(opt.CachePath)
	if err != nil {
		return nil, "", err
	}
	store, err := llmcache.Open(path)
	if err != nil {
		return nil, "", err
	}
	return store, path, nil
}

func handleCacheStats(ctx context.Context, opt Options, w io.Writer) error {
	store, path, err := openCache(opt)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, hits, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Cache: %s\nEntries: %d\nHits: %d\n", path, entries, hits)
	return nil
}

func handleCachePurge(ctx context.Context, opt Options, w io.Writer) error {
	store, path, err := openCache(opt)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Purge(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Purged %s\n", path)
	return nil
}
