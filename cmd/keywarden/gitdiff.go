package main

import (
	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/pkg/enum"
)

var (
	diffFlags   outputFlags
	diffBase    string
	diffCompare string
)

var gitDiffCmd = &cobra.Command{
	Use:   "git-diff [path]",
	Short: "Scan the lines added between two refs",
	Long: `Scan only the lines added between --base and --compare (default HEAD).
Built for pre-merge checks: a finding here is an exposure this change
introduces, not an inherited one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitDiffCmd,
}

func init() {
	diffFlags.register(gitDiffCmd)
	gitDiffCmd.Flags().StringVar(&diffBase, "base", "", "Base ref to diff from (required)")
	gitDiffCmd.Flags().StringVar(&diffCompare, "compare", "HEAD", "Compare ref to diff to")
	gitDiffCmd.MarkFlagRequired("base")
}

func runGitDiffCmd(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	excluder, err := cfg.NewExcluder()
	if err != nil {
		return err
	}

	orch, c, err := newOrchestrator(cfg, &diffFlags)
	if err != nil {
		return err
	}
	defer c.Close()

	source := enum.NewGitDiffEnumerator(enum.Config{
		Root:     target,
		Excluder: excluder,
		OnSkip:   orch.Collector().OnSkip,
	}, diffBase, diffCompare)

	rep, err := orch.Run(cmd.Context(), source)
	if err != nil {
		return err
	}
	return finishRun(cmd, cfg, &diffFlags, rep)
}
