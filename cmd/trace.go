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
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/pkg/journal"
)

func buildTraceCommand(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "trace [PATH]",
		Short: "Summarize a trace file (default: --trace-path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opt.TracePath
			if len(args) == 1 {
				path = args[0]
			}
			return runTraceCommand(path)
		},
	}
}

func runTraceCommand(path string) error {
	events, err := journal.ParseEventsFromFile(path)
	if err != nil {
		return fmt.Errorf("reading trace %q: %w", path, err)
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	fmt.Printf("%d events from %s to %s\n\n", len(events),
		events[0].Timestamp.Format("2006-01-02 15:04:05"),
		events[len(events)-1].Timestamp.Format("2006-01-02 15:04:05"))
	counts := journal.CountByAction(events)
	for _, action := range slices.Sorted(maps.Keys(counts)) {
		fmt.Printf("%-20s %d\n", action, counts[action])
	}
	return nil
}
