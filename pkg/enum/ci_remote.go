package enum

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/oauth2"
)

// FetchGitHubWorkflows pulls every workflow file under .github/workflows/
// of "owner/repo" through the GitHub contents API. The token is optional
// for public repositories. Read-only throughout.
func FetchGitHubWorkflows(ctx context.Context, ownerRepo, token string) ([]CIFile, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q (want owner/repo)", ownerRepo)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)

	_, dir, _, err := client.Repositories.GetContents(ctx, owner, repo, ".github/workflows", nil)
	if err != nil {
		return nil, fmt.Errorf("listing workflows for %s: %w", ownerRepo, err)
	}

	var files []CIFile
	for _, entry := range dir {
		name := entry.GetName()
		ext := strings.ToLower(name[strings.LastIndex(name, ".")+1:])
		if entry.GetType() != "file" || (ext != "yml" && ext != "yaml") {
			continue
		}

		fileContent, _, _, err := client.Repositories.GetContents(ctx, owner, repo, entry.GetPath(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetching workflow %s: %w", entry.GetPath(), err)
		}
		content, err := fileContent.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decoding workflow %s: %w", entry.GetPath(), err)
		}

		files = append(files, CIFile{
			System:  "github-actions",
			Source:  fmt.Sprintf("%s:%s", ownerRepo, entry.GetPath()),
			Content: []byte(content),
		})
	}
	return files, nil
}

// FetchGitLabCI pulls a project's .gitlab-ci.yml from its default branch.
func FetchGitLabCI(ctx context.Context, project, token string) ([]CIFile, error) {
	client, err := gitlab.NewClient(token)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	raw, _, err := client.RepositoryFiles.GetRawFile(project, ".gitlab-ci.yml",
		&gitlab.GetRawFileOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching .gitlab-ci.yml for %s: %w", project, err)
	}

	return []CIFile{{
		System:  "gitlab-ci",
		Source:  fmt.Sprintf("%s:.gitlab-ci.yml", project),
		Content: raw,
	}}, nil
}
