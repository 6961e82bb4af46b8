package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/track"
)

var errNoMatch = errors.New("no matching track in the library")

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		q       track.Query
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Look up a recording in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(q.Title) == "" && strings.TrimSpace(q.ISRC) == "" {
				return fmt.Errorf("--title or --isrc is required")
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				result, rec, err := a.engine.Match(cmd.Context(), q)
				if err != nil {
					return err
				}
				if result == nil {
					return errNoMatch
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"match": result, "track": rec})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					[][]string{
						{"Method", string(result.Method)},
						{"Confidence", confidenceLabel(result.Confidence)},
						{"Artist", orDash(rec.Artist)},
						{"Title", orDash(rec.Title)},
						{"Album", orDash(rec.Album)},
						{"Format", strings.ToUpper(rec.Format)},
						{"Size", bytesLabel(rec.FileSize)},
						{"Path", rec.FilePath},
					},
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&q.Artist, "artist", "", "Artist name")
	cmd.Flags().StringVar(&q.Title, "title", "", "Track title")
	cmd.Flags().StringVar(&q.Album, "album", "", "Album title")
	cmd.Flags().StringVar(&q.ISRC, "isrc", "", "ISRC code")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
