// Package gitlab implements a git.RemoteCommitter that appends
// commits to a GitLab branch through the commits API. All files
// land in one server-side commit; updates carry the last commit
// id seen for each file so a concurrent change to the same file
// is rejected instead of overwritten.
//
// GitLab applies the commit on top of the live branch head, so
// a concurrent commit that touches only other files is kept and
// the new commit lands after it. Unlike the GitHub backend, no
// fast-forward check guards the branch as a whole.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/tokura1222/music-platform/publisher/git"
)

// Config holds the settings needed to create a GitLab
// commit backend.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project") or numeric project id.
	Repo string
	// Branch receives the commits. Defaults to "main".
	Branch string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
}

// Backend appends commits to a GitLab branch.
//
// Pattern: Strategy -- implements git.RemoteCommitter.
type Backend struct {
	client *gl.Client
	repo   string
	branch string
}

// NewBackend validates cfg and returns a Backend ready to
// commit.
func NewBackend(cfg Config) (*Backend, error) {
	const errCtx = "creating gitlab backend"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &Backend{
		client: client,
		repo:   cfg.Repo,
		branch: branch,
	}, nil
}

// CommitBlobs stores blobs as one new commit on the
// branch. Files that exist at the current tip are updated,
// others are created. A failure is reported as *StepError
// and leaves the branch untouched.
func (b *Backend) CommitBlobs(
	ctx context.Context,
	message string,
	blobs []git.Blob,
) error {
	const errCtx = "committing via gitlab"

	if len(blobs) == 0 {
		return fmt.Errorf("%s: %w", errCtx, git.ErrNoFiles)
	}

	branch, resp, err := b.client.Branches.GetBranch(
		b.repo, b.branch, gl.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx,
			newStepError("resolving branch", resp, err),
		)
	}

	if branch.Commit == nil || branch.Commit.ID == "" {
		return fmt.Errorf(
			"%s: %w", errCtx,
			newStepError(
				"resolving branch", resp,
				errors.New("branch has no commit"),
			),
		)
	}

	tip := branch.Commit.ID

	actions := make([]*gl.CommitActionOptions, 0, len(blobs))

	for _, blob := range blobs {
		action, err := b.action(ctx, tip, blob)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		actions = append(actions, action)
	}

	commit, resp, err := b.client.Commits.CreateCommit(
		b.repo,
		&gl.CreateCommitOptions{
			Branch:        gl.Ptr(b.branch),
			CommitMessage: gl.Ptr(message),
			Actions:       actions,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx,
			newStepError("creating commit", resp, err),
		)
	}

	slog.Info(
		"updated branch",
		"branch", b.branch,
		"commit", commit.ID,
		"parent", tip,
	)

	return nil
}

// action builds the create or update action for blob,
// depending on whether its path exists at tip.
func (b *Backend) action(
	ctx context.Context,
	tip string,
	blob git.Blob,
) (*gl.CommitActionOptions, error) {
	opt := &gl.CommitActionOptions{
		FilePath: gl.Ptr(blob.Path),
		Content:  gl.Ptr(blob.Content),
		Encoding: gl.Ptr("base64"),
	}

	meta, resp, err := b.client.RepositoryFiles.GetFileMetaData(
		b.repo,
		blob.Path,
		&gl.GetFileMetaDataOptions{Ref: gl.Ptr(tip)},
		gl.WithContext(ctx),
	)

	switch {
	case err == nil:
		opt.Action = gl.Ptr(gl.FileUpdate)
		opt.LastCommitID = gl.Ptr(meta.LastCommitID)
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		opt.Action = gl.Ptr(gl.FileCreate)
	default:
		return nil, newStepError(
			"inspecting "+blob.Path, resp, err,
		)
	}

	return opt, nil
}

// StepError reports the GitLab request that failed. No
// commit is created when it is returned.
type StepError struct {
	// Step names the failing request.
	Step string
	// StatusCode is the HTTP status, or 0 when no
	// response was received.
	StatusCode int
	// Body is the raw response body, if any.
	Body string
	// Err is the underlying failure.
	Err error
}

func newStepError(
	step string,
	resp *gl.Response,
	err error,
) *StepError {
	se := &StepError{Step: step, Err: err}

	if resp != nil {
		se.StatusCode = resp.StatusCode
	}

	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) {
		se.Body = strings.TrimSpace(string(errResp.Body))
	}

	slog.Warn(
		"gitlab response",
		"step", step,
		"status", se.StatusCode,
		"body", se.Body,
	)

	return se
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Details returns the provider response body, or the
// error text when no body was received.
func (e *StepError) Details() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s", e.Step, e.Body)
	}

	return e.Error()
}
