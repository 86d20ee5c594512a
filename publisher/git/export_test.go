package git

// RelPathForTest exposes relPath.
func (r *Repo) RelPathForTest(path string) (string, error) {
	return r.relPath(path)
}

// IsNothingToCommitForTest exposes isNothingToCommit.
var IsNothingToCommitForTest = isNothingToCommit
