// Package discovery produces feature candidates for a repository: it collects
// repository context, asks the configured engines in order, validates what
// comes back and records the run on disk.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"featurefactory/internal/vcs"
)

// ContextOptions caps how much of the repository is sent to an engine.
type ContextOptions struct {
	Root            string
	BaseBranch      string
	MaxFiles        int
	MaxSnippetFiles int
	MaxSnippetChars int
}

// RepoContext is the engine input, persisted as agent_input.json.
type RepoContext struct {
	RepositoryRoot    string            `json:"repositoryRoot"`
	Branch            string            `json:"branch"`
	TrackedFiles      []string          `json:"trackedFiles"`
	TrackedFilesTotal int               `json:"trackedFilesTotal"`
	FileSnippets      map[string]string `json:"fileSnippets"`
}

// CollectContext lists the markdown documents tracked on the base branch and
// reads the first few of them. Unreadable documents are left out.
func CollectContext(ctx context.Context, v vcs.VCS, opts ContextOptions, logger *slog.Logger) (*RepoContext, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := v.ListFiles(ctx, opts.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to list files on %s: %w", opts.BaseBranch, err)
	}

	var markdown []string
	for _, f := range files {
		if isMarkdown(f) {
			markdown = append(markdown, f)
		}
	}

	branch, err := v.CurrentBranch(ctx)
	if err != nil {
		logger.Warn("could not resolve current branch", "error", err)
		branch = opts.BaseBranch
	}

	out := &RepoContext{
		RepositoryRoot:    opts.Root,
		Branch:            branch,
		TrackedFiles:      head(markdown, opts.MaxFiles),
		TrackedFilesTotal: len(markdown),
		FileSnippets:      map[string]string{},
	}

	for _, rel := range head(markdown, opts.MaxSnippetFiles) {
		text, err := v.ReadFile(ctx, opts.BaseBranch, rel)
		if err != nil {
			logger.Debug("skipping snippet", "path", rel, "error", err)
			continue
		}
		text = truncate(strings.TrimPrefix(text, "\ufeff"), opts.MaxSnippetChars)
		if text != "" {
			out.FileSnippets[rel] = text
		}
	}
	return out, nil
}

func isMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}

func head(list []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(list) <= n {
		return append([]string{}, list...)
	}
	return append([]string{}, list[:n]...)
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
