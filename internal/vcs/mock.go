package vcs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// MockVCS is an in-memory VCS. Branches point at commit ids; each commit
// snapshots the branch's files. Err hooks inject faults.
type MockVCS struct {
	mu       sync.Mutex
	current  string
	branches map[string]string
	trees    map[string]map[string]string // commit -> path -> content

	BranchExistsErr error
	CreateBranchErr func(name string) error
	CommitErr       func(branch, path string) error

	CreateBranchCalls int
	CommitCalls       int
}

// NewMockVCS returns a repository with base at an initial commit holding files.
func NewMockVCS(base string, files map[string]string) *MockVCS {
	m := &MockVCS{
		current:  base,
		branches: make(map[string]string),
		trees:    make(map[string]map[string]string),
	}
	tree := make(map[string]string, len(files))
	for k, v := range files {
		tree[k] = v
	}
	sha := commitID("init", tree)
	m.trees[sha] = tree
	m.branches[base] = sha
	return m
}

// SetCurrentBranch changes what CurrentBranch reports.
func (m *MockVCS) SetCurrentBranch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = name
}

func (m *MockVCS) CurrentBranch(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *MockVCS) HeadSha(ctx context.Context, branch string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sha, ok := m.branches[branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", branch, ErrNotFound)
	}
	return sha, nil
}

func (m *MockVCS) BranchExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BranchExistsErr != nil {
		return false, m.BranchExistsErr
	}
	_, ok := m.branches[name]
	return ok, nil
}

func (m *MockVCS) CreateBranch(ctx context.Context, name, fromSha string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateBranchCalls++
	if m.CreateBranchErr != nil {
		if err := m.CreateBranchErr(name); err != nil {
			return err
		}
	}
	if _, ok := m.branches[name]; ok {
		return fmt.Errorf("branch %s already exists", name)
	}
	if _, ok := m.trees[fromSha]; !ok {
		return fmt.Errorf("commit %s: %w", fromSha, ErrNotFound)
	}
	m.branches[name] = fromSha
	return nil
}

func (m *MockVCS) CommitFile(ctx context.Context, branch, path, content, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls++
	if m.CommitErr != nil {
		if err := m.CommitErr(branch, path); err != nil {
			return "", err
		}
	}
	parent, ok := m.branches[branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", branch, ErrNotFound)
	}
	tree := make(map[string]string)
	for k, v := range m.trees[parent] {
		tree[k] = v
	}
	tree[path] = content
	sha := commitID(parent+message, tree)
	m.trees[sha] = tree
	m.branches[branch] = sha
	return sha, nil
}

func (m *MockVCS) ListFiles(ctx context.Context, ref string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, err := m.treeAt(ref)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(tree))
	for p := range tree {
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

func (m *MockVCS) ReadFile(ctx context.Context, ref, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree, err := m.treeAt(ref)
	if err != nil {
		return "", err
	}
	content, ok := tree[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return content, nil
}

// Branches returns every branch name, sorted.
func (m *MockVCS) Branches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.branches))
	for n := range m.branches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *MockVCS) treeAt(ref string) (map[string]string, error) {
	if sha, ok := m.branches[ref]; ok {
		return m.trees[sha], nil
	}
	if tree, ok := m.trees[ref]; ok {
		return tree, nil
	}
	return nil, fmt.Errorf("ref %s: %w", ref, ErrNotFound)
}

func commitID(seed string, tree map[string]string) string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha1.New()
	h.Write([]byte(seed))
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(tree[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
