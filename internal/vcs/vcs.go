// Package vcs abstracts the version-control operations promotion needs.
package vcs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a branch, ref or file does not exist.
var ErrNotFound = errors.New("not found")

// VCS creates branches and commits single files on them.
type VCS interface {
	CurrentBranch(ctx context.Context) (string, error)
	// HeadSha resolves the tip commit of branch.
	HeadSha(ctx context.Context, branch string) (string, error)
	// BranchExists checks both the local repository and the remote.
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name, fromSha string) error
	// CommitFile writes content at path on branch as a new commit and
	// returns the commit id.
	CommitFile(ctx context.Context, branch, path, content, message string) (string, error)
	// ListFiles returns every file path tracked at ref, sorted.
	ListFiles(ctx context.Context, ref string) ([]string, error)
	// ReadFile returns the content of path at ref.
	ReadFile(ctx context.Context, ref, path string) (string, error)
}
