package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/tokura1222/music-platform/publisher/git"
)

const (
	fileMode = "100644"
	blobType = "blob"
)

// ErrMalformedResponse is returned when GitHub answers a
// request without the object id the next stage needs.
var ErrMalformedResponse = errors.New(
	"malformed github response",
)

// Config holds the settings needed to create a GitHub
// commit backend.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// Branch receives the commits. Defaults to "main".
	Branch string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
}

// Backend appends commits to a GitHub branch.
//
// Pattern: Strategy -- implements git.RemoteCommitter.
type Backend struct {
	client    *gh.Client
	repoOwner string
	repo      string
	branch    string
}

// NewBackend validates cfg and returns a Backend ready to
// commit.
func NewBackend(cfg Config) (*Backend, error) {
	const errCtx = "creating github backend"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return newBackend(client, cfg), nil
}

func newBackend(client *gh.Client, cfg Config) *Backend {
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &Backend{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
		branch:    branch,
	}
}

// CommitBlobs stores blobs as one new commit on the
// branch. The branch ref is updated only after the commit
// object exists; any failure before that leaves the
// branch untouched. A failure is reported as *StepError.
func (b *Backend) CommitBlobs(
	ctx context.Context,
	message string,
	blobs []git.Blob,
) error {
	const errCtx = "committing via github"

	if len(blobs) == 0 {
		return fmt.Errorf("%s: %w", errCtx, git.ErrNoFiles)
	}

	run := &commitRun{
		backend: b,
		message: message,
		blobs:   blobs,
		stage:   StageStart,
	}

	steps := []struct {
		name string
		next Stage
		do   func(context.Context) (*gh.Response, error)
	}{
		{"resolving branch ref", StageRefResolved, run.resolveRef},
		{"resolving base tree", StageTreeResolved, run.resolveTree},
		{"creating blobs", StageBlobsCreated, run.createBlobs},
		{"creating tree", StageTreeCreated, run.createTree},
		{"creating commit", StageCommitCreated, run.createCommit},
		{"updating branch ref", StageRefUpdated, run.updateRef},
	}

	for _, st := range steps {
		resp, err := st.do(ctx)
		if err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx,
				newStepError(run.stage, st.name, resp, err),
			)
		}

		run.stage = st.next

		slog.Info(
			"github commit stage",
			"stage", run.stage.String(),
			"branch", b.branch,
		)
	}

	slog.Info(
		"updated branch",
		"branch", b.branch,
		"commit", run.commitSHA,
		"parent", run.parentSHA,
	)

	return nil
}

// commitRun carries the object ids produced by each stage
// of one CommitBlobs call.
type commitRun struct {
	backend *Backend
	message string
	blobs   []git.Blob
	stage   Stage

	parentSHA   string
	baseTreeSHA string
	entries     []*gh.TreeEntry
	treeSHA     string
	commitSHA   string
}

func (r *commitRun) resolveRef(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	ref, resp, err := b.client.Git.GetRef(
		ctx, b.repoOwner, b.repo, "heads/"+b.branch,
	)
	if err != nil {
		return resp, err
	}

	r.parentSHA = ref.GetObject().GetSHA()
	if r.parentSHA == "" {
		return resp, fmt.Errorf(
			"ref %s: %w", b.branch, ErrMalformedResponse,
		)
	}

	return resp, nil
}

func (r *commitRun) resolveTree(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	commit, resp, err := b.client.Git.GetCommit(
		ctx, b.repoOwner, b.repo, r.parentSHA,
	)
	if err != nil {
		return resp, err
	}

	r.baseTreeSHA = commit.GetTree().GetSHA()
	if r.baseTreeSHA == "" {
		return resp, fmt.Errorf(
			"commit %s: %w", r.parentSHA, ErrMalformedResponse,
		)
	}

	return resp, nil
}

func (r *commitRun) createBlobs(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	r.entries = make([]*gh.TreeEntry, 0, len(r.blobs))

	for _, blob := range r.blobs {
		created, resp, err := b.client.Git.CreateBlob(
			ctx, b.repoOwner, b.repo, &gh.Blob{
				Content:  gh.Ptr(blob.Content),
				Encoding: gh.Ptr("base64"),
			},
		)
		if err != nil {
			return resp, fmt.Errorf("%s: %w", blob.Path, err)
		}

		if created.GetSHA() == "" {
			return resp, fmt.Errorf(
				"%s: %w", blob.Path, ErrMalformedResponse,
			)
		}

		r.entries = append(r.entries, &gh.TreeEntry{
			Path: gh.Ptr(blob.Path),
			Mode: gh.Ptr(fileMode),
			Type: gh.Ptr(blobType),
			SHA:  created.SHA,
		})
	}

	return nil, nil
}

func (r *commitRun) createTree(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	tree, resp, err := b.client.Git.CreateTree(
		ctx, b.repoOwner, b.repo, r.baseTreeSHA, r.entries,
	)
	if err != nil {
		return resp, err
	}

	r.treeSHA = tree.GetSHA()
	if r.treeSHA == "" {
		return resp, fmt.Errorf("tree: %w", ErrMalformedResponse)
	}

	return resp, nil
}

func (r *commitRun) createCommit(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	commit, resp, err := b.client.Git.CreateCommit(
		ctx, b.repoOwner, b.repo, &gh.Commit{
			Message: gh.Ptr(r.message),
			Tree:    &gh.Tree{SHA: gh.Ptr(r.treeSHA)},
			Parents: []*gh.Commit{{SHA: gh.Ptr(r.parentSHA)}},
		}, nil,
	)
	if err != nil {
		return resp, err
	}

	r.commitSHA = commit.GetSHA()
	if r.commitSHA == "" {
		return resp, fmt.Errorf("commit: %w", ErrMalformedResponse)
	}

	return resp, nil
}

// updateRef moves the branch without force, so GitHub
// rejects the update when the tip is no longer the parent
// of the new commit.
func (r *commitRun) updateRef(
	ctx context.Context,
) (*gh.Response, error) {
	b := r.backend

	_, resp, err := b.client.Git.UpdateRef(
		ctx, b.repoOwner, b.repo, &gh.Reference{
			Ref: gh.Ptr("refs/heads/" + b.branch),
			Object: &gh.GitObject{
				SHA: gh.Ptr(r.commitSHA),
			},
		}, false,
	)

	return resp, err
}

// responseBody reads what is left of an error response.
func responseBody(resp *gh.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)

		return ""
	}

	return strings.TrimSpace(string(rb))
}
