// Package git implements the VCS adapter against a local clone using the
// git command line. Files are committed with plumbing commands on a
// temporary index, so the working tree is never touched.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "featurefactory/internal/errors"
	"featurefactory/internal/vcs"
)

// Client runs git in Dir.
type Client struct {
	Dir    string
	Remote string
	// Push publishes created branches and commits to Remote.
	Push      bool
	UserName  string
	UserEmail string
}

var _ vcs.VCS = (*Client)(nil)

// NewClient creates a client for the repository at dir.
func NewClient(dir, remote string) *Client {
	if remote == "" {
		remote = "origin"
	}
	return &Client{Dir: dir, Remote: remote, Push: true}
}

// maskingWriter wraps an io.Writer and masks credentials embedded in URLs.
type maskingWriter struct {
	w io.Writer
}

var (
	reGitHubPAT = regexp.MustCompile(`https://[^@:/]+@github\.com`)
	reBasicAuth = regexp.MustCompile(`https://[^:/@]+:[^@/]+@`)
)

func mask(s string) string {
	s = reGitHubPAT.ReplaceAllString(s, "https://[REDACTED]@github.com")
	return reBasicAuth.ReplaceAllString(s, "https://[REDACTED]@")
}

func (mw *maskingWriter) Write(p []byte) (n int, err error) {
	_, err = mw.w.Write([]byte(mask(string(p))))
	return len(p), err
}

// run executes git and returns trimmed stdout. Failures carry masked stderr.
func (c *Client) run(ctx context.Context, env []string, stdin string, args ...string) (string, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	// Enforce no prompting
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=/bin/true")
	cmd.Env = append(cmd.Env, env...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	cmd.Stdout = &outBuf
	cmd.Stderr = &maskingWriter{w: &errBuf}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nStderr: %s", args[0], err, strings.TrimSpace(errBuf.String()))
	}
	return strings.TrimSpace(outBuf.String()), nil
}

// CurrentBranch returns the checked-out branch ("" when detached).
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.run(ctx, nil, "", "branch", "--show-current")
}

// HeadSha resolves branch locally, falling back to the remote-tracking ref.
func (c *Client) HeadSha(ctx context.Context, branch string) (string, error) {
	for _, ref := range []string{"refs/heads/" + branch, "refs/remotes/" + c.Remote + "/" + branch} {
		if sha, err := c.run(ctx, nil, "", "rev-parse", "--verify", "--quiet", ref+"^{commit}"); err == nil && sha != "" {
			return sha, nil
		}
	}
	return "", fmt.Errorf("branch %s: %w", branch, vcs.ErrNotFound)
}

// LocalBranchExists checks refs/heads/branch.
func (c *Client) LocalBranchExists(ctx context.Context, branch string) (bool, error) {
	_, err := c.run(ctx, nil, "", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil, nil
}

// RemoteBranchExists asks the remote for refs/heads/branch.
func (c *Client) RemoteBranchExists(ctx context.Context, branch string) (bool, error) {
	out, err := c.run(ctx, nil, "", "ls-remote", "--heads", c.Remote, "refs/heads/"+branch)
	if err != nil {
		return false, apperrors.NewTransportError("ls-remote "+c.Remote, err)
	}
	return out != "", nil
}

// BranchExists checks the local repository first, then the remote.
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	if ok, _ := c.LocalBranchExists(ctx, name); ok {
		return true, nil
	}
	return c.RemoteBranchExists(ctx, name)
}

// CreateBranch creates name at fromSha without checking it out.
func (c *Client) CreateBranch(ctx context.Context, name, fromSha string) error {
	if _, err := c.run(ctx, nil, "", "branch", name, fromSha); err != nil {
		return apperrors.NewTransportError("create branch "+name, err)
	}
	return c.push(ctx, name)
}

// CommitFile writes content at path as a new commit on branch.
func (c *Client) CommitFile(ctx context.Context, branch, path, content, message string) (string, error) {
	parent, err := c.HeadSha(ctx, branch)
	if err != nil {
		return "", err
	}

	blob, err := c.run(ctx, nil, content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	indexDir, err := os.MkdirTemp("", "featurefactory-index")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(indexDir)
	indexEnv := []string{"GIT_INDEX_FILE=" + filepath.Join(indexDir, "index")}

	if _, err := c.run(ctx, indexEnv, "", "read-tree", parent); err != nil {
		return "", fmt.Errorf("read tree: %w", err)
	}
	cacheInfo := fmt.Sprintf("100644,%s,%s", blob, filepath.ToSlash(path))
	if _, err := c.run(ctx, indexEnv, "", "update-index", "--add", "--cacheinfo", cacheInfo); err != nil {
		return "", fmt.Errorf("update index: %w", err)
	}
	tree, err := c.run(ctx, indexEnv, "", "write-tree")
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}

	commit, err := c.run(ctx, c.identityEnv(), message, "commit-tree", tree, "-p", parent)
	if err != nil {
		return "", fmt.Errorf("commit tree: %w", err)
	}
	if _, err := c.run(ctx, nil, "", "update-ref", "refs/heads/"+branch, commit, parent); err != nil {
		return "", fmt.Errorf("update ref: %w", err)
	}
	if err := c.push(ctx, branch); err != nil {
		return "", err
	}
	return commit, nil
}

func (c *Client) push(ctx context.Context, branch string) error {
	if !c.Push {
		return nil
	}
	refspec := "refs/heads/" + branch + ":refs/heads/" + branch
	if _, err := c.run(ctx, nil, "", "push", c.Remote, refspec); err != nil {
		return apperrors.NewTransportError("push "+branch, err)
	}
	return nil
}

func (c *Client) identityEnv() []string {
	var env []string
	if c.UserName != "" {
		env = append(env, "GIT_AUTHOR_NAME="+c.UserName, "GIT_COMMITTER_NAME="+c.UserName)
	}
	if c.UserEmail != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+c.UserEmail, "GIT_COMMITTER_EMAIL="+c.UserEmail)
	}
	return env
}

// ListFiles lists every file tracked at ref.
func (c *Client) ListFiles(ctx context.Context, ref string) ([]string, error) {
	sha, err := c.HeadSha(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, nil, "", "ls-tree", "-r", "--name-only", "-z", sha)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(out, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile returns path as of ref.
func (c *Client) ReadFile(ctx context.Context, ref, path string) (string, error) {
	sha, err := c.HeadSha(ctx, ref)
	if err != nil {
		return "", err
	}
	var outBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "show", sha+":"+filepath.ToSlash(path))
	cmd.Dir = c.Dir
	cmd.Stdout = &outBuf
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: %w", path, vcs.ErrNotFound)
		}
		return "", err
	}
	return outBuf.String(), nil
}
