// Copyright © 2018 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/typecov/config"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/observability"
)

const serviceName = "typecov"

var (
	cfgFile      string
	colorFlag    string
	logLevelFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "typecov",
	Short: "Type coverage diagnostics for Hack and PHP",
	Long: `typecov reports code that is not covered by the type checker as
editor diagnostics. It runs as a language server next to your editor, as a
batch checker for CI, or as a console for exploring how coverage results
turn into diagnostics.

Getting started:
  typecov lsp --stdio              Serve diagnostics to an LSP client
  typecov check src/...            Report uncovered ranges for a tree
  typecov check --summary a.hack   Print a per-file coverage table
  typecov repl                     Drive the diagnostics reconciler by hand
  typecov replay session.txt       Run a console script non-interactively

Configuration is read from $HOME/.typecov.yaml (or --config) and from
TYPECOV_* environment variables, e.g. TYPECOV_HACK_CLIENT_PATH.

More information:
  Source code:     https://github.com/luthersystems/typecov`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.typecov.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		`Override the log level: "debug", "info", "warn", or "error".`)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".typecov")
		viper.SetConfigType("yaml")
	}
	config.BindEnv(viper.GetViper())

	// stdout belongs to the LSP transport, so nothing is printed here.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "typecov: reading config: %v\n", err)
		}
	}
}

// loadConfig decodes the global configuration. --log-level only applies
// when given.
func loadConfig() (config.Config, error) {
	return config.Load(nil)
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := observability.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return observability.NewLogger(os.Stderr, level, cfg.Log.Format, serviceName), nil
}

func colorMode() diagnostic.ColorMode {
	return diagnostic.ParseColorMode(colorFlag)
}

// applyColorMode forces fatih/color on or off when --color is explicit.
func applyColorMode() {
	switch colorMode() {
	case diagnostic.ColorAlways:
		color.NoColor = false
	case diagnostic.ColorNever:
		color.NoColor = true
	}
}

func newRenderer() *diagnostic.Renderer {
	return &diagnostic.Renderer{Color: colorMode()}
}
