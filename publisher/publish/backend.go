package publish

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tokura1222/music-platform/publisher/config"
	"github.com/tokura1222/music-platform/publisher/git"
	"github.com/tokura1222/music-platform/publisher/git/github"
	"github.com/tokura1222/music-platform/publisher/git/gitlab"
)

// Pattern: Strategy -- both backends commit a batch and
// report an outcome, with different atomicity.

// Backend commits one batch to the configured branch.
type Backend interface {
	Commit(
		ctx context.Context,
		message string,
		files []CommitFile,
	) (git.Outcome, error)
}

// BackendFunc adapts a plain function to the Backend
// interface.
type BackendFunc func(
	ctx context.Context,
	message string,
	files []CommitFile,
) (git.Outcome, error)

// Commit delegates to the wrapped function.
func (f BackendFunc) Commit(
	ctx context.Context,
	message string,
	files []CommitFile,
) (git.Outcome, error) {
	return f(ctx, message, files)
}

// BackendFactory builds the backend for one call from
// that call's configuration.
type BackendFactory func(
	ctx context.Context,
	cfg config.Config,
) (Backend, error)

// LocalBackend opens cfg.WorkTree and returns a Backend that
// stages each file's on-disk location, commits, and pushes
// cfg.Branch to cfg.Remote.
func LocalBackend(
	ctx context.Context,
	cfg config.Config,
) (Backend, error) {
	const errCtx = "creating local backend"

	repo, err := git.Open(ctx, cfg.WorkTree, cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return BackendFunc(func(
		ctx context.Context,
		message string,
		files []CommitFile,
	) (git.Outcome, error) {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.diskPath(repo.Dir))
		}

		return repo.CommitAndPush(ctx, message, cfg.Branch, paths)
	}), nil
}

// RemoteBackend returns a Backend that base64-encodes each
// file and commits through the provider named by
// cfg.Provider.
func RemoteBackend(
	_ context.Context,
	cfg config.Config,
) (Backend, error) {
	const errCtx = "creating remote backend"

	committer, err := newRemoteCommitter(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return remoteBackend(committer), nil
}

// remoteBackend adapts a git.RemoteCommitter to Backend.
func remoteBackend(committer git.RemoteCommitter) Backend {
	return BackendFunc(func(
		ctx context.Context,
		message string,
		files []CommitFile,
	) (git.Outcome, error) {
		blobs := make([]git.Blob, 0, len(files))
		for _, f := range files {
			blobs = append(blobs, git.NewBlob(f.Path, f.Content))
		}

		if err := committer.CommitBlobs(
			ctx, message, blobs,
		); err != nil {
			return git.OutcomeCommitted, err
		}

		return git.OutcomeCommitted, nil
	})
}

func newRemoteCommitter(
	cfg config.Config,
) (git.RemoteCommitter, error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderGitHub:
		owner, name, err := cfg.SplitRepo()
		if err != nil {
			return nil, err
		}

		return github.NewBackend(github.Config{
			RepoOwner:      owner,
			Repo:           name,
			Branch:         cfg.Branch,
			AccessToken:    cfg.Token,
			EnterpriseHost: cfg.APIHost,
		})
	case config.ProviderGitLab:
		return gitlab.NewBackend(gitlab.Config{
			Host:        cfg.APIHost,
			Repo:        cfg.Repo,
			Branch:      cfg.Branch,
			AccessToken: cfg.Token,
		})
	default:
		return nil, fmt.Errorf(
			"%w: unknown provider %q",
			config.ErrInvalid, cfg.Provider,
		)
	}
}

// diskPath returns where the file lives under root.
func (f CommitFile) diskPath(root string) string {
	if f.LocalPath != "" {
		return f.LocalPath
	}

	return filepath.Join(root, filepath.FromSlash(f.Path))
}
