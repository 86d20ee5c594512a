// Package git provides the two ways of landing a commit on a
// branch: a local working tree driven through the git CLI,
// and a strategy interface for hosting providers that build
// commits through their remote APIs.
//
// Repo wraps a checked-out working tree with methods for
// staging, committing, and pushing. CommitAndPush runs the
// whole sequence and reports OutcomeUnchanged when the
// content is already part of history.
//
// The RemoteCommitter interface abstracts remote commit
// creation. Implementations exist for GitHub and GitLab in
// sub-packages. RemoteCommitterFunc is a convenience adapter
// that lets plain functions satisfy the interface.
package git
