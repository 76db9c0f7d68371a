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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crewtune/crewtune/pkg/runs"
)

func buildRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List, show and delete recorded crew runs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recorded runs, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return handleListRuns()
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Show a run and its task outputs ('latest' for the newest run)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handleShowRun(args[0])
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a recorded run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handleDeleteRun(args[0])
			},
		},
	)
	return cmd
}

func handleListRuns() error {
	manager, err := runs.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create run manager: %w", err)
	}

	runList, err := manager.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runList) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREW\tSTRATEGY\tSTATE\tCREATED")
	for _, r := range runList {
		meta, err := r.LoadMetadata()
		if err != nil {
			fmt.Fprintf(w, "%s\t<error loading metadata>\t\t\t\n", r.ID)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			meta.Crew,
			meta.Strategy,
			meta.State,
			meta.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func handleShowRun(id string) error {
	manager, err := runs.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create run manager: %w", err)
	}

	var r *runs.Run
	if id == "latest" {
		r, err = manager.LatestRun()
		if err == nil && r == nil {
			err = fmt.Errorf("no runs found")
		}
	} else {
		r, err = manager.FindRunByID(id)
	}
	if err != nil {
		return err
	}

	summary, err := r.String()
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", r.ID, err)
	}
	fmt.Print(summary)

	outputs, err := r.TaskOutputs()
	if err != nil {
		return fmt.Errorf("failed to load task outputs: %w", err)
	}
	for _, out := range outputs {
		fmt.Printf("\n## %s (%s)\n", out.Name, out.Agent)
		if out.OutputFile != "" {
			fmt.Printf("Written to %s\n", out.OutputFile)
		}
		fmt.Printf("\n%s\n", out.Raw)
	}
	return nil
}

func handleDeleteRun(id string) error {
	manager, err := runs.NewManager()
	if err != nil {
		return fmt.Errorf("failed to create run manager: %w", err)
	}
	if err := manager.DeleteRun(id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	fmt.Printf("Deleted run %s\n", id)
	return nil
}
