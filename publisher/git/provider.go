package git

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Pattern: Strategy -- swap git hosting platform
// without changing publish logic.

// Outcome is the successful result of a commit attempt.
type Outcome int

const (
	// OutcomeCommitted means a new commit now holds the
	// content.
	OutcomeCommitted Outcome = iota
	// OutcomeUnchanged means the content was already
	// committed and no new commit was created.
	OutcomeUnchanged
)

// String returns a short name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Blob describes one file to store through a remote API.
type Blob struct {
	// Path is the repository-relative, slash-separated
	// location of the file.
	Path string
	// Content is the base64-encoded file content.
	Content string
}

// NewBlob base64-encodes content for path.
func NewBlob(path string, content []byte) Blob {
	return Blob{
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(content),
	}
}

// RemoteCommitter appends one commit holding blobs to a
// branch on a git hosting platform.
type RemoteCommitter interface {
	CommitBlobs(
		ctx context.Context,
		message string,
		blobs []Blob,
	) error
}

// RemoteCommitterFunc adapts a plain function to the
// RemoteCommitter interface.
type RemoteCommitterFunc func(
	ctx context.Context,
	message string,
	blobs []Blob,
) error

// CommitBlobs delegates to the wrapped function. An empty
// batch is rejected before the function is called.
func (f RemoteCommitterFunc) CommitBlobs(
	ctx context.Context,
	message string,
	blobs []Blob,
) error {
	if len(blobs) == 0 {
		return fmt.Errorf(
			"committing blobs: %w", ErrNoFiles,
		)
	}

	return f(ctx, message, blobs)
}
