package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance and snapshots",
	}
	cmd.AddCommand(newDBStatusCommand(ctx))
	cmd.AddCommand(newDBOptimizeCommand(ctx))
	cmd.AddCommand(newDBVacuumCommand(ctx))
	cmd.AddCommand(newDBBackupCommand(ctx))
	cmd.AddCommand(newDBBackupsCommand(ctx))
	return cmd
}

func newDBStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database size and maintenance state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				st, err := a.maint.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, st)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderSummary([][2]string{
					{"Schema version", strconv.FormatInt(st.SchemaVersion, 10)},
					{"Database", bytesLabel(st.DBFileSize)},
					{"WAL", bytesLabel(st.WALFileSize)},
					{"Pages", strconv.FormatInt(st.PageCount, 10)},
					{"Free pages", strconv.FormatInt(st.FreelistCount, 10)},
					{"Last optimize", orDash(st.LastOptimizeAt)},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newDBOptimizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Run PRAGMA optimize and checkpoint the WAL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := a.maint.Optimize(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database optimized")
				return nil
			})
		},
	}
}

func newDBVacuumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Rebuild the database file to reclaim free pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := a.maint.Vacuum(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database vacuumed")
				return nil
			})
		},
	}
}

func newDBBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a database snapshot to the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				info, err := a.backup.Snapshot(cmd.Context(), "manual")
				if err != nil {
					return err
				}
				if _, err := a.backup.Prune(); err != nil {
					a.logger.Warn("pruning snapshots", "error", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written: %s (%s)\n", info.Filename, bytesLabel(info.Size))
				return nil
			})
		},
	}
}

func newDBBackupsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List database snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				snapshots, err := a.backup.List()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, snapshots)
				}
				if len(snapshots) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No snapshots in %s\n", a.backup.Dir())
					return nil
				}
				rows := make([][]string, 0, len(snapshots))
				for _, s := range snapshots {
					rows = append(rows, []string{s.Filename, s.Reason, bytesLabel(s.Size), humanize.Time(s.CreatedAt)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Reason", "Size", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
