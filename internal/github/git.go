package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	apperrors "featurefactory/internal/errors"
	"featurefactory/internal/vcs"
)

var _ vcs.VCS = (*Client)(nil)

type gitRef struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type gitCommit struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type gitTree struct {
	SHA       string         `json:"sha"`
	Truncated bool           `json:"truncated"`
	Tree      []gitTreeEntry `json:"tree"`
}

type gitTreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
	Type string `json:"type"`
	SHA  string `json:"sha,omitempty"`
}

type gitObject struct {
	SHA string `json:"sha"`
}

// CurrentBranch reports the configured branch; the API has no checkout.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.Branch, nil
}

func (c *Client) refPath(kind, branch string) string {
	return c.repoPath("git", kind, "heads", escapeRef(branch))
}

// HeadSha resolves the tip commit of branch.
func (c *Client) HeadSha(ctx context.Context, branch string) (string, error) {
	var ref gitRef
	if _, err := c.do(ctx, http.MethodGet, c.refPath("ref", branch), nil, nil, &ref); err != nil {
		if apperrors.IsNotFound(err) {
			return "", fmt.Errorf("branch %s: %w", branch, vcs.ErrNotFound)
		}
		return "", apperrors.NewTransportError("get ref "+branch, err)
	}
	return strings.TrimSpace(ref.Object.SHA), nil
}

// BranchExists reports whether refs/heads/name exists on GitHub.
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := c.HeadSha(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, vcs.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// CreateBranch creates refs/heads/name at fromSha.
func (c *Client) CreateBranch(ctx context.Context, name, fromSha string) error {
	body := map[string]string{"ref": "refs/heads/" + name, "sha": fromSha}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("git", "refs"), nil, body, nil); err != nil {
		return apperrors.NewTransportError("create branch "+name, err)
	}
	return nil
}

// CommitFile commits one file on branch through blob, tree and commit
// objects, then fast-forwards the branch ref.
func (c *Client) CommitFile(ctx context.Context, branch, path, content, message string) (string, error) {
	parent, err := c.HeadSha(ctx, branch)
	if err != nil {
		return "", err
	}
	var parentCommit gitCommit
	if _, err := c.do(ctx, http.MethodGet, c.repoPath("git", "commits", parent), nil, nil, &parentCommit); err != nil {
		return "", apperrors.NewTransportError("get commit "+parent, err)
	}

	var blob gitObject
	blobReq := map[string]string{"content": content, "encoding": "utf-8"}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("git", "blobs"), nil, blobReq, &blob); err != nil {
		return "", apperrors.NewTransportError("create blob", err)
	}

	var tree gitObject
	treeReq := map[string]interface{}{
		"base_tree": parentCommit.Tree.SHA,
		"tree":      []gitTreeEntry{{Path: path, Mode: "100644", Type: "blob", SHA: blob.SHA}},
	}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("git", "trees"), nil, treeReq, &tree); err != nil {
		return "", apperrors.NewTransportError("create tree", err)
	}

	var commit gitObject
	commitReq := map[string]interface{}{"message": message, "tree": tree.SHA, "parents": []string{parent}}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("git", "commits"), nil, commitReq, &commit); err != nil {
		return "", apperrors.NewTransportError("create commit", err)
	}

	updateReq := map[string]interface{}{"sha": commit.SHA, "force": false}
	if _, err := c.do(ctx, http.MethodPatch, c.refPath("refs", branch), nil, updateReq, nil); err != nil {
		return "", apperrors.NewTransportError("update ref "+branch, err)
	}
	return commit.SHA, nil
}

// ListFiles lists every blob path in the tree at ref (a branch name).
func (c *Client) ListFiles(ctx context.Context, ref string) ([]string, error) {
	sha, err := c.HeadSha(ctx, ref)
	if err != nil {
		return nil, err
	}
	var commit gitCommit
	if _, err := c.do(ctx, http.MethodGet, c.repoPath("git", "commits", sha), nil, nil, &commit); err != nil {
		return nil, apperrors.NewTransportError("get commit "+sha, err)
	}

	var tree gitTree
	query := url.Values{"recursive": []string{"1"}}
	if _, err := c.do(ctx, http.MethodGet, c.repoPath("git", "trees", commit.Tree.SHA), query, nil, &tree); err != nil {
		return nil, apperrors.NewTransportError("get tree "+commit.Tree.SHA, err)
	}
	if tree.Truncated {
		c.logger().Warn("repository tree listing truncated", "ref", ref)
	}

	var files []string
	for _, e := range tree.Tree {
		if e.Type == "blob" && e.Path != "" {
			files = append(files, e.Path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile fetches path at ref through the contents API.
func (c *Client) ReadFile(ctx context.Context, ref, path string) (string, error) {
	var content struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	query := url.Values{"ref": []string{ref}}
	raw := json.RawMessage{}
	if _, err := c.do(ctx, http.MethodGet, c.repoPath("contents", escapeRef(path)), query, nil, &raw); err != nil {
		if apperrors.IsNotFound(err) {
			return "", fmt.Errorf("%s: %w", path, vcs.ErrNotFound)
		}
		return "", apperrors.NewTransportError("get contents "+path, err)
	}
	// directories come back as arrays
	if err := json.Unmarshal(raw, &content); err != nil || content.Type != "file" {
		return "", fmt.Errorf("%s is not a file: %w", path, vcs.ErrNotFound)
	}
	if !strings.EqualFold(content.Encoding, "base64") {
		return "", fmt.Errorf("%s: unsupported encoding %q", path, content.Encoding)
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(data), nil
}

func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
