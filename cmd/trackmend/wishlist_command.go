package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/wishlist"
)

func newWishlistCommand(ctx *commandContext) *cobra.Command {
	wishlistCmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage wanted recordings",
	}

	wishlistCmd.AddCommand(newWishlistAddCommand(ctx))
	wishlistCmd.AddCommand(newWishlistListCommand(ctx))
	wishlistCmd.AddCommand(newWishlistRemoveCommand(ctx))

	return wishlistCmd
}

func newWishlistAddCommand(ctx *commandContext) *cobra.Command {
	var item wishlist.Item

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recording to the wishlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := a.engine.Wishlist().Create(cmd.Context(), &item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&item.Artist, "artist", "", "Artist name")
	cmd.Flags().StringVar(&item.Title, "title", "", "Track title")
	cmd.Flags().StringVar(&item.Album, "album", "", "Album title")
	cmd.Flags().StringVar(&item.ISRC, "isrc", "", "ISRC code")
	cmd.Flags().StringVar(&item.Source, "source", "cli", "Where the request came from")
	return cmd
}

func newWishlistListCommand(ctx *commandContext) *cobra.Command {
	var (
		statusFlags []string
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List wishlist items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]wishlist.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				s, err := wishlist.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
				if err != nil {
					return err
				}
				statuses = append(statuses, s)
			}

			return ctx.withApp(cmd.Context(), func(a *app) error {
				items, err := a.engine.Wishlist().List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					if items == nil {
						items = []wishlist.Item{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Wishlist is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, it := range items {
					rows = append(rows, []string{
						it.ID, orDash(it.Artist), orDash(it.Title), string(it.Status), orDash(shortID(it.MatchedTrackID)),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Artist", "Title", "Status", "Track"}, rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (pending, downloading, completed)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newWishlistRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a wishlist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if err := a.engine.Wishlist().Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
