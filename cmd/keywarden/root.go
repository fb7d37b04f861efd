package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keywarden/keywarden/pkg/config"
)

// errFindingsFound signals exit code 1: the scan worked and something
// was found. Real failures exit 2.
var errFindingsFound = errors.New("findings at or above the confidence floor")

var (
	flagVerbose    bool
	flagQuiet      bool
	flagNoColor    bool
	flagConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "keywarden",
	Short: "Keywarden finds leaked AI provider API keys",
	Long: `Keywarden scans working trees, git history, branch diffs, and CI
configuration for leaked AI provider API keys (OpenAI, Anthropic, Azure
OpenAI, Gemini, Hugging Face and others), and can optionally confirm
whether a found key is still live against the provider's own read-only
endpoint. Keys are never sent anywhere except their issuer, and never
printed or logged unmasked.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		if flagQuiet {
			level = slog.LevelError
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if flagNoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", config.DefaultFileName, "Configuration file path")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(gitHistoryCmd)
	rootCmd.AddCommand(gitDiffCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(flagConfigPath)
}
