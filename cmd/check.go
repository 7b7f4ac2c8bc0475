// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luthersystems/typecov/activeeditor"
	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/hack"
)

// Exit codes of the check command.
const (
	exitClean         = 0
	exitUncovered     = 1
	exitBadInvocation = 2
)

type checkOptions struct {
	json     bool
	yaml     bool
	summary  bool
	excludes []string
	hhClient string
	jobs     int
}

// fileReport is the outcome of checking one file.
type fileReport struct {
	Path     string
	Provider string
	Result   *coverage.Result
	Messages []diagnostic.FileMessage
	// Skipped is set when no provider claims the file's grammar.
	Skipped bool
}

// CheckCommand creates the "check" cobra command. Embedders can pass
// WithProviders to check grammars other than Hack.
func CheckCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts...)
	var co checkOptions

	cmd := &cobra.Command{
		Use:   "check [flags] files...",
		Short: "Report code not covered by the type checker",
		Long: `Run the coverage providers over the given files and report every range
that is not covered by the type system.

A trailing "/..." expands to all Hack and PHP files below a directory.
Diagnostics are rendered to stderr unless --json or --yaml is given, in which
case the messages are written to stdout. The --summary table goes to stdout,
or to stderr alongside --json and --yaml.

Exit codes:
  0  Every file is fully covered
  1  One or more uncovered ranges were reported
  2  Bad invocation (invalid flags, missing hh_client, provider failure)

Examples:
  typecov check src/main.hack                  # Check a single file
  typecov check --summary src/...              # Per-file coverage table
  typecov check --json src/... > report.json   # Machine readable output
  typecov check --exclude=vendor ./...         # Skip a directory
  typecov check --hh-client=/opt/hhvm/bin/hh_client src/...`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			code := runCheck(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, co, args)
			if code != exitClean {
				os.Exit(code)
			}
		},
	}

	cmd.Flags().BoolVar(&co.json, "json", false,
		"Write messages to stdout as JSON.")
	cmd.Flags().BoolVar(&co.yaml, "yaml", false,
		"Write messages to stdout as YAML.")
	cmd.Flags().BoolVar(&co.summary, "summary", false,
		"Print a per-file coverage table.")
	cmd.Flags().StringArrayVar(&co.excludes, "exclude", nil,
		"Glob pattern for files to exclude (may be repeated).")
	cmd.Flags().StringVar(&co.hhClient, "hh-client", "",
		"Path to hh_client (overrides hack.client_path).")
	cmd.Flags().IntVarP(&co.jobs, "jobs", "j", 0,
		"Maximum concurrent provider calls (default: GOMAXPROCS).")

	return cmd
}

func runCheck(ctx context.Context, stdout, stderr io.Writer, c *cmdConfig, co checkOptions, args []string) int {
	if co.json && co.yaml {
		fmt.Fprintln(stderr, "typecov check: --json and --yaml are mutually exclusive") //nolint:errcheck // best-effort CLI output
		return exitBadInvocation
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return exitBadInvocation
	}
	if co.hhClient != "" {
		cfg.Hack.ClientPath = co.hhClient
	}

	files, err := expandArgs(args, co.excludes)
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return exitBadInvocation
	}
	if len(files) == 0 {
		fmt.Fprintln(stderr, "typecov check: no files to check") //nolint:errcheck // best-effort CLI output
		return exitBadInvocation
	}

	reg := activeeditor.NewProviderRegistry(c.resolveProviders(cfg)...)
	reports, err := checkFiles(ctx, reg, files, co.jobs)
	if err != nil {
		fmt.Fprintf(stderr, "typecov check: %v\n", err) //nolint:errcheck // best-effort CLI output
		if errors.Is(err, hack.ErrClientNotFound) {
			fmt.Fprintln(stderr, "install hhvm or pass --hh-client") //nolint:errcheck // best-effort CLI output
		}
		return exitBadInvocation
	}

	msgs := []diagnostic.FileMessage{}
	for _, r := range reports {
		msgs = append(msgs, r.Messages...)
	}

	switch {
	case co.json:
		err = diagnostic.FormatJSON(stdout, msgs)
	case co.yaml:
		err = diagnostic.FormatYAML(stdout, msgs)
	default:
		ds := make([]diagnostic.Diagnostic, 0, len(msgs))
		for _, m := range msgs {
			ds = append(ds, diagnostic.FromMessage(m))
		}
		err = newRenderer().RenderAll(stderr, ds)
	}
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck // best-effort CLI output
		return exitBadInvocation
	}

	if co.summary {
		applyColorMode()
		w := stdout
		if co.json || co.yaml {
			w = stderr
		}
		writeSummary(w, reports)
	}
	if len(msgs) > 0 {
		return exitUncovered
	}
	return exitClean
}

// checkFiles asks the best provider for each file, at most jobs at a time.
// Reports keep the order of files. The first provider error cancels the
// remaining calls.
func checkFiles(ctx context.Context, reg *activeeditor.ProviderRegistry, files []string, jobs int) ([]fileReport, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		g.Go(func() error {
			editor := coverage.FileEditor{FilePath: path, GrammarName: grammarForPath(path)}
			p := reg.Find(editor.Grammar())
			if p == nil {
				reports[i] = fileReport{Path: path, Skipped: true}
				return nil
			}
			res, err := p.Coverage(gctx, editor)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = fileReport{
				Path:     path,
				Provider: p.DisplayName(),
				Result:   res,
				Messages: coverage.Messages(editor, res),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

var (
	goodColor = color.New(color.FgGreen)
	fairColor = color.New(color.FgYellow)
	poorColor = color.New(color.FgRed, color.Bold)
)

const (
	goodCoverage = 90.0
	fairCoverage = 50.0
)

func formatPercentage(pct float64) string {
	s := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct >= goodCoverage:
		return goodColor.Sprint(s)
	case pct >= fairCoverage:
		return fairColor.Sprint(s)
	default:
		return poorColor.Sprint(s)
	}
}

// writeSummary prints one row per file and the mean coverage of the files
// that produced a result.
func writeSummary(w io.Writer, reports []fileReport) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"File", "Provider", "Coverage", "Uncovered"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	var (
		total    float64
		measured int
		ranges   int
	)
	for _, r := range reports {
		switch {
		case r.Skipped:
			tbl.AppendRow(table.Row{r.Path, "-", "skipped", ""})
		case r.Result == nil:
			tbl.AppendRow(table.Row{r.Path, r.Provider, "-", ""})
		default:
			total += r.Result.Percentage
			measured++
			ranges += len(r.Result.UncoveredRanges)
			tbl.AppendRow(table.Row{r.Path, r.Provider, formatPercentage(r.Result.Percentage), len(r.Result.UncoveredRanges)})
		}
	}

	mean := "-"
	if measured > 0 {
		mean = formatPercentage(total / float64(measured))
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(reports)), "", mean, ranges})
	tbl.Render()
}

func init() {
	rootCmd.AddCommand(CheckCommand())
}
