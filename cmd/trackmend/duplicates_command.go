package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/dedupe"
	"github.com/sydlexius/trackmend/internal/filesystem"
	"github.com/sydlexius/trackmend/internal/job"
)

func newDuplicatesCommand(ctx *commandContext) *cobra.Command {
	var (
		execute    bool
		quarantine string
		reportPath string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List duplicate tracks and optionally remove the lower-quality copies",
		Long: "Without --execute, prints each duplicate group and what would be removed. " +
			"With --execute, removes every copy except the best one of each group.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if q := strings.TrimSpace(quarantine); q != "" {
					q = filepath.Clean(q)
					if filesystem.Within(a.cfg.Music.LibraryPath, q) {
						return fmt.Errorf("quarantine directory %s must be outside the library %s", q, a.cfg.Music.LibraryPath)
					}
					a.planner.SetQuarantine(a.cfg.Music.LibraryPath, q)
				}
				if execute {
					return executeDuplicates(cmd, a, reportPath, jsonOut)
				}
				return previewDuplicates(cmd, a, reportPath, jsonOut)
			})
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Remove duplicate copies instead of previewing")
	cmd.Flags().StringVar(&quarantine, "quarantine", "", "Move removed copies under this directory instead of deleting them")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the report as JSON to this file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func previewDuplicates(cmd *cobra.Command, a *app, reportPath string, jsonOut bool) error {
	report, plan, err := a.engine.PlanRemoval(cmd.Context())
	if err != nil {
		return err
	}
	payload := map[string]any{"report": report, "plan": plan}
	if reportPath != "" {
		if err := writeReport(reportPath, payload); err != nil {
			return err
		}
	}
	if jsonOut {
		return writeJSON(cmd, payload)
	}

	out := cmd.OutOrStdout()
	if len(report.Groups) == 0 {
		fmt.Fprintln(out, "No duplicates found")
		return nil
	}
	fmt.Fprint(out, renderGroups(report.Groups))
	fmt.Fprint(out, renderSummary([][2]string{
		{"Groups", itoa(len(report.Groups))},
		{"Removable copies", itoa(report.DuplicateCount)},
		{"Reclaimable", bytesLabel(report.WastedBytes)},
	}))
	fmt.Fprintf(out, "Dry run: re-run with --execute to remove %d files\n", plan.FilesRemoved)
	return nil
}

func executeDuplicates(cmd *cobra.Command, a *app, reportPath string, jsonOut bool) error {
	snap, err := runJob(cmd.Context(), a, job.KindDedupe, a.engine.Dedupe)
	plan, _ := snap.Summary.(*dedupe.Plan)
	if plan != nil && reportPath != "" {
		if werr := writeReport(reportPath, plan); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if plan == nil {
		plan = &dedupe.Plan{}
	}
	if jsonOut {
		if err := writeJSON(cmd, plan); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, renderSummary([][2]string{
			{"Files removed", itoa(plan.FilesRemoved)},
			{"Space freed", bytesLabel(plan.SpaceFreedBytes)},
			{"Errors", itoa(len(plan.Errors))},
		}))
		if len(plan.Errors) > 0 {
			rows := make([][]string, 0, len(plan.Errors))
			for _, e := range plan.Errors {
				rows = append(rows, []string{e.Path, e.Message})
			}
			fmt.Fprint(out, renderTable([]string{"Path", "Error"}, rows, nil))
		}
	}
	if n := len(plan.Errors); n > 0 {
		return fmt.Errorf("%d files could not be removed", n)
	}
	return nil
}

func renderGroups(groups []dedupe.Group) string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		keeper := g.Keeper()
		var wasted int64
		for _, m := range g.Removable() {
			wasted += m.FileSize
		}
		rows = append(rows, []string{
			orDash(keeper.Artist),
			orDash(keeper.Title),
			orDash(keeper.Album),
			itoa(len(g.Members)),
			strings.ToUpper(keeper.Format),
			bytesLabel(wasted),
		})
	}
	return renderTable(
		[]string{"Artist", "Title", "Album", "Copies", "Keep", "Reclaimable"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}

func writeReport(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := filesystem.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
