// Copyright © 2018 The ELPS authors

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/repl"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Drive the diagnostics reconciler interactively",
	Long: `Start an interactive console wired to a fresh diagnostics reconciler.

Each line is an analysis event or a toggle; the console prints every update
and invalidation the reconciler publishes in response. Line editing and
history are supported via readline. Use Ctrl-D or "quit" to exit.

Example session:
  typecov> result /www/a.hack 80 (1,0)-(1,4)
  typecov> enable
  typecov> result /www/a.hack 80 (1,0)-(1,4)
  update /www/a.hack (1)
    (1,0)-(1,4) Warning: Not covered by the type system
  typecov> pane-change
  invalidate all

Type "help" for the full command list.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, err) //nolint:errcheck // best-effort error display
			os.Exit(2)
		}
		logger, err := newLogger(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err) //nolint:errcheck // best-effort error display
			os.Exit(2)
		}
		var renderer *diagnostic.Renderer
		if replRender {
			renderer = newRenderer()
		}
		err = repl.RunConsole(filepath.Base(os.Args[0])+"> ",
			repl.WithRenderer(renderer),
			repl.WithCoverageOptions(coverage.WithLogger(logger)),
		)
		if err != nil {
			fmt.Fprintln(os.Stderr, err) //nolint:errcheck // best-effort error display
			os.Exit(1)
		}
	},
}

var replRender bool

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().BoolVar(&replRender, "render", false,
		"Also render each message as an annotated source snippet.")
}
