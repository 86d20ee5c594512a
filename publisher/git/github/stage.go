package github

import (
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v68/github"
)

// Stage is a point reached while building a commit. Stages
// are passed strictly in declaration order.
type Stage int

const (
	// StageStart is the state before any request.
	StageStart Stage = iota
	// StageRefResolved means the branch tip is known.
	StageRefResolved
	// StageTreeResolved means the tip's tree is known.
	StageTreeResolved
	// StageBlobsCreated means every file has a blob.
	StageBlobsCreated
	// StageTreeCreated means the new tree exists.
	StageTreeCreated
	// StageCommitCreated means the new commit exists but
	// no ref points at it yet.
	StageCommitCreated
	// StageRefUpdated means the branch points at the new
	// commit.
	StageRefUpdated
)

var stageNames = [...]string{
	StageStart:         "start",
	StageRefResolved:   "ref-resolved",
	StageTreeResolved:  "tree-resolved",
	StageBlobsCreated:  "blobs-created",
	StageTreeCreated:   "tree-created",
	StageCommitCreated: "commit-created",
	StageRefUpdated:    "ref-updated",
}

// String returns the stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}

	return stageNames[s]
}

// StepError reports the step that failed and the last
// stage reached before it. The branch ref is unchanged
// whenever Stage is below StageRefUpdated.
type StepError struct {
	// Stage is the last stage completed.
	Stage Stage
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
	stage Stage,
	step string,
	resp *gh.Response,
	err error,
) *StepError {
	se := &StepError{
		Stage: stage,
		Step:  step,
		Err:   err,
	}

	if resp != nil {
		se.StatusCode = resp.StatusCode
		se.Body = responseBody(resp)
	}

	slog.Warn(
		"github response",
		"step", step,
		"stage", stage.String(),
		"status", se.StatusCode,
		"body", se.Body,
	)

	return se
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf(
		"%s (after %s): %v", e.Step, e.Stage, e.Err,
	)
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

// Orphaned reports whether a commit object was created
// but never referenced by the branch.
func (e *StepError) Orphaned() bool {
	return e.Stage == StageCommitCreated
}
