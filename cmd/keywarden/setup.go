package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keywarden/keywarden/pkg/config"
)

const configTemplate = `# keywarden configuration
# Lists here merge with the built-in defaults.

exclude_extensions: []
exclude_dirs: []
ignore_git: true
max_commits: 0

entropy:
  min_length: 16
  threshold: 3.5

validation:
  enabled: false
  timeout_seconds: 10
  workers_per_provider: 4
  verdict_ttl_minutes: 60

reporting:
  min_confidence: low
  redact: true

slack:
  webhook_channel: ""
`

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write configuration templates into the current directory",
	Long: `Write a .keywarden.yml template and a .env template for the report
integration tokens. Token prompts read without echo; leave one empty to
skip that integration.`,
	RunE: runSetupCmd,
}

func runSetupCmd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if err := writeIfAbsent(config.DefaultFileName, configTemplate); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", config.DefaultFileName)

	tokens := []struct {
		env    string
		prompt string
	}{
		{"SLACK_API_TOKEN", "Slack API token (for --slack-report)"},
		{"GITHUB_TOKEN", "GitHub token (for --github-actions on private repos)"},
		{"GITLAB_TOKEN", "GitLab token (for --gitlab-ci on private projects)"},
	}

	var lines []string
	for _, tok := range tokens {
		value, err := promptSecret(cmd, tok.prompt)
		if err != nil {
			return err
		}
		if value == "" {
			lines = append(lines, "# "+tok.env+"=")
			continue
		}
		lines = append(lines, tok.env+"="+value)
	}

	if err := writeIfAbsent(".env", strings.Join(lines, "\n")+"\n"); err != nil {
		return err
	}
	fmt.Fprintln(out, "wrote .env")
	fmt.Fprintln(out, "add .env to your .gitignore if it is not there already")
	return nil
}

// writeIfAbsent refuses to clobber an existing file.
func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// promptSecret reads a token without echo when stdin is a terminal, and
// skips the prompt entirely when it is not (CI).
func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (empty to skip): ", prompt)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(value)), nil
}
