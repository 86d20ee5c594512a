// Package publish commits a batch of content files to a
// branch and reports one Result per call. The Engine picks a
// Strategy from configuration on every call: a local working
// tree driven through the git CLI, or a hosting provider's
// remote API when a token and repository are configured.
//
// The main entry point is Engine.CommitAndPush. It never
// returns an error or panics; every failure becomes a Result
// with Success false and the backend diagnostic in Details.
package publish
