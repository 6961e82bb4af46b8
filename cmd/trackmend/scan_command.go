package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/job"
	"github.com/sydlexius/trackmend/internal/reconcile"
	"github.com/sydlexius/trackmend/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the music library and refresh the track store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				snap, err := runJob(cmd.Context(), a, job.KindScan, a.engine.Scan)
				if err != nil {
					return err
				}
				result, _ := snap.Summary.(*scanner.Result)
				if jsonOut {
					return writeJSON(cmd, result)
				}
				if result == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Scan finished")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderSummary([][2]string{
					{"Files", itoa(result.Files)},
					{"Added", itoa(result.Added)},
					{"Updated", itoa(result.Updated)},
					{"Removed", itoa(result.Removed)},
					{"Failed", itoa(result.Failed)},
					{"Path fallback", itoa(result.TagFallback)},
					{"Partial", strconv.FormatBool(result.Partial)},
					{"Duration", result.Duration.Round(time.Millisecond).String()},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Complete wishlist items that are already in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				snap, err := runJob(cmd.Context(), a, job.KindReconcile, a.engine.Reconcile)
				if err != nil {
					return err
				}
				result, _ := snap.Summary.(*reconcile.Result)
				if jsonOut {
					return writeJSON(cmd, result)
				}
				if result == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Reconcile finished")
					return nil
				}
				out := cmd.OutOrStdout()
				if len(result.Matches) > 0 {
					rows := make([][]string, 0, len(result.Matches))
					for _, m := range result.Matches {
						rows = append(rows, []string{
							orDash(m.Artist), orDash(m.Title), string(m.Match.Method), confidenceLabel(m.Match.Confidence),
						})
					}
					fmt.Fprint(out, renderTable(
						[]string{"Artist", "Title", "Method", "Confidence"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					))
				}
				fmt.Fprint(out, renderSummary([][2]string{
					{"Checked", itoa(result.Checked)},
					{"Matched", itoa(result.Matched)},
					{"Unmatched", itoa(result.Unmatched)},
					{"Skipped", itoa(result.Skipped)},
					{"Completed", itoa(result.Completed)},
					{"Duration", result.Duration.Round(time.Millisecond).String()},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
