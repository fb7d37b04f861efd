package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/pkg/enum"
	"github.com/keywarden/keywarden/pkg/scan"
)

var (
	scanFlags       outputFlags
	scanGitHubRepo  string
	scanGitLabProj  string
	scanMaxFileSize int64
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a file or directory tree for leaked keys",
	Long: `Scan a working tree (or a single file) for leaked AI provider API keys.
Remote CI configuration can be pulled into the same scan with
--github-actions and --gitlab-ci.`,
	Args: cobra.ExactArgs(1),
	RunE: runScanCmd,
}

func init() {
	scanFlags.register(scanCmd)
	scanCmd.Flags().StringVar(&scanGitHubRepo, "github-actions", "", "Also scan OWNER/REPO's workflow files (uses GITHUB_TOKEN if set)")
	scanCmd.Flags().StringVar(&scanGitLabProj, "gitlab-ci", "", "Also scan PROJECT's .gitlab-ci.yml (uses GITLAB_TOKEN if set)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	target := args[0]
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	excluder, err := cfg.NewExcluder()
	if err != nil {
		return err
	}

	orch, c, err := newOrchestrator(cfg, &scanFlags)
	if err != nil {
		return err
	}
	defer c.Close()

	enumCfg := enum.Config{
		Root:               target,
		Excluder:           excluder,
		MaxFileSize:        scanMaxFileSize,
		DisableIgnoreFiles: !cfg.IgnoreGit,
		OnSkip:             orch.Collector().OnSkip,
	}

	sources := []scan.Source{enum.NewFilesystemEnumerator(enumCfg)}

	localCI, err := enum.NewLocalCIEnumerator(enumCfg)
	if err != nil {
		return err
	}
	sources = append(sources, localCI)

	if scanGitHubRepo != "" {
		files, err := enum.FetchGitHubWorkflows(cmd.Context(), scanGitHubRepo, os.Getenv("GITHUB_TOKEN"))
		if err != nil {
			return fmt.Errorf("fetching GitHub workflows: %w", err)
		}
		sources = append(sources, enum.NewCIEnumerator(enumCfg, files))
	}
	if scanGitLabProj != "" {
		files, err := enum.FetchGitLabCI(cmd.Context(), scanGitLabProj, os.Getenv("GITLAB_TOKEN"))
		if err != nil {
			return fmt.Errorf("fetching GitLab CI config: %w", err)
		}
		sources = append(sources, enum.NewCIEnumerator(enumCfg, files))
	}

	rep, err := orch.Run(cmd.Context(), scan.Multi(sources...))
	if err != nil {
		return err
	}
	return finishRun(cmd, cfg, &scanFlags, rep)
}
