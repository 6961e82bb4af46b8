package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "trackmend %s\n", version.String())
			return nil
		},
	}
}
