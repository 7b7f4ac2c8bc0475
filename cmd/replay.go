// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/repl"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script>",
	Short: "Run a console script against a fresh reconciler",
	Long: `Run the commands of a console script, one per line, and print what the
reconciler publishes. Use "-" to read the script from stdin. Malformed lines
are reported to stderr and skipped.

Exit codes:
  0  Every line ran
  1  One or more lines could not be parsed
  2  The script could not be read`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		code := runReplay(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		if code != 0 {
			os.Exit(code)
		}
	},
}

func runReplay(stdin io.Reader, stdout, stderr io.Writer, path string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return 2
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return 2
	}

	r := stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // CLI tool reads user-specified files
		if err != nil {
			fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
			return 2
		}
		defer f.Close() //nolint:errcheck // read-only
		r = f
	}

	bad, err := repl.RunScript(r, stdout, stderr, coverage.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return 2
	}
	if bad > 0 {
		return 1
	}
	return 0
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
