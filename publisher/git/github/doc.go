// Package github implements a git.RemoteCommitter that appends
// commits to a GitHub (cloud or enterprise) branch through the
// git data API, without a local working tree. Configure with a
// Config containing the repository owner, name, branch, and
// access token. Set EnterpriseHost for GitHub Enterprise
// installations.
//
// A commit is built bottom-up: blobs, then a tree layered on
// the branch's current tree, then a commit whose only parent is
// the current tip. The branch ref moves last, as a non-forced
// update, so nothing becomes reachable until the whole commit
// exists and a concurrently moved branch is never overwritten.
package github
