package github_test

import (
	"crypto/sha1" //nolint:gosec // object ids only
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v68/github"

	ghbackend "github.com/tokura1222/music-platform/publisher/git/github"
)

const (
	testOwner = "org"
	testRepo  = "site"
)

type fakeCommit struct {
	tree    string
	parents []string
	message string
}

// fakeGitHub serves the subset of the git data API the
// backend uses, over an in-memory object graph holding a
// single branch named main.
type fakeGitHub struct {
	mu sync.Mutex

	ref     string
	blobs   map[string][]byte
	trees   map[string]map[string]string
	commits map[string]fakeCommit

	// failBlobAt makes the n-th blob creation fail
	// (1-based); zero never fails.
	failBlobAt int
	blobCount  int
	// failRefUpdate rejects every ref update.
	failRefUpdate bool
	// onCreateCommit runs after a commit object is
	// stored, with the lock held.
	onCreateCommit func(f *fakeGitHub)

	requests []string
}

// newFakeGitHub returns a fake whose main branch holds
// one commit with files.
func newFakeGitHub(files map[string]string) *fakeGitHub {
	f := &fakeGitHub{
		blobs:   make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]fakeCommit),
	}

	entries := make(map[string]string, len(files))
	for p, c := range files {
		entries[p] = f.putBlob([]byte(c))
	}

	f.ref = f.putCommit(fakeCommit{
		tree:    f.putTree(entries),
		message: "initial",
	})

	return f
}

func objectID(kind string, payload string) string {
	sum := sha1.Sum([]byte(kind + "\x00" + payload)) //nolint:gosec

	return hex.EncodeToString(sum[:])
}

func (f *fakeGitHub) putBlob(content []byte) string {
	id := objectID("blob", string(content))
	f.blobs[id] = content

	return id
}

func (f *fakeGitHub) putTree(entries map[string]string) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(p + " " + entries[p] + "\n")
	}

	id := objectID("tree", sb.String())
	f.trees[id] = entries

	return id
}

func (f *fakeGitHub) putCommit(c fakeCommit) string {
	id := objectID("commit", fmt.Sprintf(
		"%s %v %s", c.tree, c.parents, c.message,
	))
	f.commits[id] = c

	return id
}

// head returns the commit the branch points at.
func (f *fakeGitHub) head() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ref
}

// files returns path → content for the tree of commit.
func (f *fakeGitHub) files(commit string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]string)
	for p, id := range f.trees[f.commits[commit].tree] {
		out[p] = string(f.blobs[id])
	}

	return out
}

func (f *fakeGitHub) commit(id string) fakeCommit {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.commits[id]
}

func (f *fakeGitHub) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.commits)
}

func (f *fakeGitHub) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.requests...)
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/repos/" + testOwner + "/" + testRepo + "/git/"
	path := strings.TrimPrefix(r.URL.Path, prefix)

	f.requests = append(f.requests, r.Method+" "+path)

	switch {
	case r.Method == http.MethodGet && path == "ref/heads/main":
		writeJSON(w, http.StatusOK, map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]any{"sha": f.ref, "type": "commit"},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "commits/"):
		f.getCommit(w, strings.TrimPrefix(path, "commits/"))
	case r.Method == http.MethodPost && path == "blobs":
		f.createBlob(w, r)
	case r.Method == http.MethodPost && path == "trees":
		f.createTree(w, r)
	case r.Method == http.MethodPost && path == "commits":
		f.createCommit(w, r)
	case r.Method == http.MethodPatch && path == "refs/heads/main":
		f.updateRef(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{
			"message": "Not Found",
		})
	}
}

func (f *fakeGitHub) getCommit(w http.ResponseWriter, id string) {
	c, ok := f.commits[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"message": "Not Found",
		})

		return
	}

	parents := make([]map[string]any, 0, len(c.parents))
	for _, p := range c.parents {
		parents = append(parents, map[string]any{"sha": p})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sha":     id,
		"message": c.message,
		"tree":    map[string]any{"sha": c.tree},
		"parents": parents,
	})
}

func (f *fakeGitHub) createBlob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	f.blobCount++
	if f.blobCount == f.failBlobAt {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "blob rejected",
		})

		return
	}

	if req.Encoding != "base64" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "unexpected encoding " + req.Encoding,
		})

		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "bad base64",
		})

		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha": f.putBlob(content),
	})
}

func (f *fakeGitHub) createTree(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	entries := make(map[string]string)
	for p, id := range f.trees[req.BaseTree] {
		entries[p] = id
	}

	for _, e := range req.Tree {
		if _, ok := f.blobs[e.SHA]; !ok || e.Type != "blob" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "tree.sha " + e.SHA + " is not a blob",
			})

			return
		}

		entries[e.Path] = e.SHA
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha": f.putTree(entries),
	})
}

func (f *fakeGitHub) createCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	if _, ok := f.trees[req.Tree]; !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "tree not found",
		})

		return
	}

	id := f.putCommit(fakeCommit{
		tree:    req.Tree,
		parents: req.Parents,
		message: req.Message,
	})

	if f.onCreateCommit != nil {
		f.onCreateCommit(f)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha":  id,
		"tree": map[string]any{"sha": req.Tree},
	})
}

func (f *fakeGitHub) updateRef(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}

	if !readJSON(w, r, &req) {
		return
	}

	if f.failRefUpdate {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Reference update failed",
		})

		return
	}

	c, ok := f.commits[req.SHA]
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Object does not exist",
		})

		return
	}

	fastForward := false
	for _, p := range c.parents {
		if p == f.ref {
			fastForward = true
		}
	}

	if !fastForward && !req.Force {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Update is not a fast forward",
		})

		return
	}

	f.ref = req.SHA

	writeJSON(w, http.StatusOK, map[string]any{
		"ref":    "refs/heads/main",
		"object": map[string]any{"sha": f.ref, "type": "commit"},
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Problems parsing JSON",
		})

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// newTestBackend serves fake over HTTP and returns a
// Backend talking to it.
func newTestBackend(
	tb testing.TB,
	fake *fakeGitHub,
	branch string,
) *ghbackend.Backend {
	tb.Helper()

	srv := httptest.NewServer(fake)
	tb.Cleanup(srv.Close)

	client := gh.NewClient(srv.Client())

	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		tb.Fatalf("parse server url: %v", err)
	}

	client.BaseURL = base

	return ghbackend.NewBackendWithClientForTest(
		client, ghbackend.Config{
			RepoOwner: testOwner,
			Repo:      testRepo,
			Branch:    branch,
		},
	)
}
