package main

import (
	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/pkg/enum"
)

var (
	historyFlags      outputFlags
	historyMaxCommits int
)

var gitHistoryCmd = &cobra.Command{
	Use:   "git-history [path]",
	Short: "Scan every commit of a repository's history",
	Long: `Walk the repository's history newest-first and scan each blob the
commits changed. A key deleted years ago is still live in history; this
finds it. Merge commits are skipped so a merged branch's lines are not
reported twice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitHistoryCmd,
}

func init() {
	historyFlags.register(gitHistoryCmd)
	gitHistoryCmd.Flags().IntVar(&historyMaxCommits, "max-commits", 0, "Scan only the newest N commits (0 = all)")
}

func runGitHistoryCmd(cmd *cobra.Command, args []string) error {
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

	orch, c, err := newOrchestrator(cfg, &historyFlags)
	if err != nil {
		return err
	}
	defer c.Close()

	maxCommits := historyMaxCommits
	if maxCommits == 0 {
		maxCommits = cfg.MaxCommits
	}

	source := enum.NewGitHistoryEnumerator(enum.Config{
		Root:       target,
		Excluder:   excluder,
		MaxCommits: maxCommits,
		OnSkip:     orch.Collector().OnSkip,
	})

	rep, err := orch.Run(cmd.Context(), source)
	if err != nil {
		return err
	}
	return finishRun(cmd, cfg, &historyFlags, rep)
}
