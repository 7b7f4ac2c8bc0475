// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Build information, overridden at link time with -ldflags "-X".
var (
	Version   = "0.2.0-dev"
	GitCommit = ""
	BuildDate = ""
)

var versionColor = color.New(color.FgGreen, color.Bold)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the typecov version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		applyColorMode()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "typecov %s\n", versionColor.Sprint(Version)) //nolint:errcheck // best-effort CLI output
		if GitCommit != "" {
			fmt.Fprintf(out, "commit  %s\n", GitCommit) //nolint:errcheck // best-effort CLI output
		}
		if BuildDate != "" {
			fmt.Fprintf(out, "built   %s\n", BuildDate) //nolint:errcheck // best-effort CLI output
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
