package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"featurefactory/internal/vcs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refBody(sha string) map[string]interface{} {
	return map[string]interface{}{"object": map[string]string{"sha": sha}}
}

func TestBranchExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/git/ref/heads/main":
			writeJSON(w, http.StatusOK, refBody("abc"))
		case "/repos/acme/widgets/git/ref/heads/dev/feat-1-add-retry":
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		}
	}))
	ctx := context.Background()

	ok, err := c.BranchExists(ctx, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.BranchExists(ctx, "dev/feat-1-add-retry")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.BranchExists(ctx, "other")
	assert.Error(t, err, "auth failures are not mistaken for a missing branch")

	sha, err := c.HeadSha(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "abc", sha)

	c.Branch = "main"
	cur, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", cur)
}

func TestCreateBranchAndCommitFile(t *testing.T) {
	var steps []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, r.Method+" "+r.URL.Path)
		var req map[string]interface{}
		if r.Body != nil && r.Method != http.MethodGet {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		switch r.Method + " " + r.URL.Path {
		case "POST /repos/acme/widgets/git/refs":
			assert.Equal(t, "refs/heads/dev/feat-1-x", req["ref"])
			assert.Equal(t, "base", req["sha"])
			writeJSON(w, http.StatusCreated, refBody("base"))
		case "GET /repos/acme/widgets/git/ref/heads/dev/feat-1-x":
			writeJSON(w, http.StatusOK, refBody("base"))
		case "GET /repos/acme/widgets/git/commits/base":
			writeJSON(w, http.StatusOK, map[string]interface{}{"sha": "base", "tree": map[string]string{"sha": "tree0"}})
		case "POST /repos/acme/widgets/git/blobs":
			assert.Equal(t, "# doc\n", req["content"])
			assert.Equal(t, "utf-8", req["encoding"])
			writeJSON(w, http.StatusCreated, map[string]string{"sha": "blob1"})
		case "POST /repos/acme/widgets/git/trees":
			assert.Equal(t, "tree0", req["base_tree"])
			entries := req["tree"].([]interface{})
			entry := entries[0].(map[string]interface{})
			assert.Equal(t, "docs/feature-proposals/FEAT-1/FEATURE.md", entry["path"])
			assert.Equal(t, "100644", entry["mode"])
			assert.Equal(t, "blob1", entry["sha"])
			writeJSON(w, http.StatusCreated, map[string]string{"sha": "tree1"})
		case "POST /repos/acme/widgets/git/commits":
			assert.Equal(t, "tree1", req["tree"])
			assert.Equal(t, []interface{}{"base"}, req["parents"])
			writeJSON(w, http.StatusCreated, map[string]string{"sha": "commit1"})
		case "PATCH /repos/acme/widgets/git/refs/heads/dev/feat-1-x":
			assert.Equal(t, "commit1", req["sha"])
			assert.Equal(t, false, req["force"])
			writeJSON(w, http.StatusOK, refBody("commit1"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	ctx := context.Background()

	require.NoError(t, c.CreateBranch(ctx, "dev/feat-1-x", "base"))
	sha, err := c.CommitFile(ctx, "dev/feat-1-x", "docs/feature-proposals/FEAT-1/FEATURE.md", "# doc\n", "chore(feature): init dev branch for FEAT-1")
	require.NoError(t, err)
	assert.Equal(t, "commit1", sha)
	assert.Len(t, steps, 7)
}

func TestListAndReadFiles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widgets/git/ref/heads/main":
			writeJSON(w, http.StatusOK, refBody("c1"))
		case "/repos/acme/widgets/git/commits/c1":
			writeJSON(w, http.StatusOK, map[string]interface{}{"sha": "c1", "tree": map[string]string{"sha": "t1"}})
		case "/repos/acme/widgets/git/trees/t1":
			assert.Equal(t, "1", r.URL.Query().Get("recursive"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"sha": "t1", "tree": []map[string]string{
				{"path": "docs", "type": "tree"},
				{"path": "docs/b.md", "type": "blob"},
				{"path": "README.md", "type": "blob"},
			}})
		case "/repos/acme/widgets/contents/docs/b.md":
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			encoded := base64.StdEncoding.EncodeToString([]byte("\ufeff# B doc"))
			writeJSON(w, http.StatusOK, map[string]string{"type": "file", "encoding": "base64", "content": encoded[:4] + "\n" + encoded[4:]})
		case "/repos/acme/widgets/contents/docs":
			writeJSON(w, http.StatusOK, []map[string]string{{"name": "b.md"}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		}
	}))
	ctx := context.Background()

	files, err := c.ListFiles(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "docs/b.md"}, files)

	content, err := c.ReadFile(ctx, "main", "docs/b.md")
	require.NoError(t, err)
	assert.Equal(t, "\ufeff# B doc", content)

	_, err = c.ReadFile(ctx, "main", "docs")
	assert.ErrorIs(t, err, vcs.ErrNotFound)

	_, err = c.ReadFile(ctx, "main", "missing.md")
	assert.ErrorIs(t, err, vcs.ErrNotFound)
}
