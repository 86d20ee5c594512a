package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tokura1222/music-platform/publisher/commitmsg"
	"github.com/tokura1222/music-platform/publisher/exec"
)

var (
	// ErrNoFiles is returned when a commit is requested
	// without any file.
	ErrNoFiles = errors.New("no files to commit")

	// ErrOutsideWorkTree is returned when a path to stage
	// does not resolve inside the working tree.
	ErrOutsideWorkTree = errors.New(
		"path is outside the working tree",
	)
)

// nothingToCommit lists the git diagnostics that mean the
// index already matches HEAD.
var nothingToCommit = []string{
	"nothing to commit",
	"nothing added to commit",
}

// Repo is a checked-out working tree already on the
// branch that receives commits. Repo takes no lock:
// callers serialize access to one working tree.
type Repo struct {
	// Dir is the absolute root of the working tree.
	Dir string
	// RemoteName is the name of the upstream remote.
	RemoteName string
}

// Open returns a Repo rooted at dir after checking that dir
// is inside a git working tree.
func Open(
	ctx context.Context,
	dir string,
	remoteName string,
) (*Repo, error) {
	const errCtx = "opening working tree"

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := exec.Ex(
		ctx, abs, "git",
		"rev-parse", "--is-inside-work-tree",
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if remoteName == "" {
		remoteName = "origin"
	}

	return &Repo{
		Dir:        abs,
		RemoteName: remoteName,
	}, nil
}

// CommitAndPush stages every path, commits them with
// message and pushes branch to the remote. Steps run in
// order and the first failure ends the sequence. When the
// index holds nothing new the result is OutcomeUnchanged
// and neither commit nor push runs.
func (r *Repo) CommitAndPush(
	ctx context.Context,
	message string,
	branch string,
	paths []string,
) (Outcome, error) {
	const errCtx = "committing and pushing"

	if len(paths) == 0 {
		return OutcomeCommitted, fmt.Errorf(
			"%s: %w", errCtx, ErrNoFiles,
		)
	}

	for _, p := range paths {
		if err := r.Stage(ctx, p); err != nil {
			return OutcomeCommitted, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	outcome, err := r.Commit(ctx, message)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", errCtx, err)
	}

	if outcome == OutcomeUnchanged {
		slog.Info(
			"nothing new to commit",
			"dir", r.Dir,
			"last_published", r.PublishedPaths(ctx),
		)

		return outcome, nil
	}

	if err := r.Push(ctx, branch); err != nil {
		return outcome, fmt.Errorf("%s: %w", errCtx, err)
	}

	return outcome, nil
}

// Stage adds one file to the index. path may be absolute
// or relative to the working tree root; it must name an
// existing file inside the working tree.
func (r *Repo) Stage(ctx context.Context, path string) error {
	const errCtx = "staging file"

	rel, err := r.relPath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := os.Stat(
		filepath.Join(r.Dir, rel),
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "add", "--", rel,
	); err != nil {
		return fmt.Errorf("%s %s: %w", errCtx, rel, err)
	}

	return nil
}

// HasStagedChanges reports whether the index differs
// from HEAD.
func (r *Repo) HasStagedChanges(
	ctx context.Context,
) (bool, error) {
	const errCtx = "checking staged changes"

	_, err := exec.Ex(
		ctx, r.Dir, "git", "diff", "--cached", "--quiet",
	)
	if err == nil {
		return false, nil
	}

	// --quiet exits with 1 when there are differences.
	var execErr *exec.Error
	if errors.As(err, &execErr) && execErr.ExitCode() == 1 {
		return true, nil
	}

	return false, fmt.Errorf("%s: %w", errCtx, err)
}

// Commit records the index as a new commit. An index
// that matches HEAD yields OutcomeUnchanged, whether it is
// seen before committing or reported by git commit itself.
func (r *Repo) Commit(
	ctx context.Context,
	message string,
) (Outcome, error) {
	const errCtx = "committing"

	staged, err := r.HasStagedChanges(ctx)
	if err != nil {
		return OutcomeCommitted, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if !staged {
		return OutcomeUnchanged, nil
	}

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "commit", "-m", message,
	); err != nil {
		// Another invocation may have committed the same
		// index between the staged check and this commit.
		if isNothingToCommit(err) {
			return OutcomeUnchanged, nil
		}

		return OutcomeCommitted, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return OutcomeCommitted, nil
}

// Push pushes branch to the remote without forcing.
func (r *Repo) Push(ctx context.Context, branch string) error {
	const errCtx = "pushing"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "push", r.RemoteName, branch,
	); err != nil {
		return fmt.Errorf("%s %s: %w", errCtx, branch, err)
	}

	return nil
}

// LastCommitMessage returns the most recent commit
// message on the current branch. Returns empty string
// on error.
func (r *Repo) LastCommitMessage(ctx context.Context) string {
	msg, err := exec.Ex(
		ctx, r.Dir, "git", "log", "-1", "--pretty=%B",
	)
	if err != nil {
		return ""
	}

	return msg
}

// PublishedPaths returns the files listed in the
// published-files trailer of the most recent commit, or
// nil when it has none.
func (r *Repo) PublishedPaths(ctx context.Context) []string {
	return commitmsg.ExtractPaths(r.LastCommitMessage(ctx))
}

// Head returns the commit id HEAD points at.
func (r *Repo) Head(ctx context.Context) (string, error) {
	const errCtx = "resolving HEAD"

	out, err := exec.Ex(
		ctx, r.Dir, "git", "rev-parse", "HEAD",
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out), nil
}

// relPath maps path to a path relative to
// the working tree root.
func (r *Repo) relPath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.Dir, path)
	}

	rel, err := filepath.Rel(r.Dir, abs)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	if rel == "." ||
		rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf(
			"%s: %w", path, ErrOutsideWorkTree,
		)
	}

	return rel, nil
}

// isNothingToCommit reports whether err is git refusing
// to create an empty commit.
func isNothingToCommit(err error) bool {
	var execErr *exec.Error
	if !errors.As(err, &execErr) {
		return false
	}

	for _, marker := range nothingToCommit {
		if strings.Contains(execErr.Output, marker) {
			return true
		}
	}

	return false
}
