package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/invweb/internal/web/app"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion)
				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "invweb %s (%s, %s/%s)\n",
				app.BuildVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
