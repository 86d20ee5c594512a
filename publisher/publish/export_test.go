package publish

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tokura1222/music-platform/publisher/git"
)

// ValidateBatchForTest exposes validateBatch.
func ValidateBatchForTest(message string, files []CommitFile) error {
	return validateBatch(message, files)
}

// RemoteBackendForTest adapts committer the way the
// remote strategy does.
func RemoteBackendForTest(committer git.RemoteCommitter) Backend {
	return remoteBackend(committer)
}

// CommitsForTest returns the commits_total value for the
// given labels.
func (m *Metrics) CommitsForTest(strategy, outcome string) float64 {
	return testutil.ToFloat64(
		m.commits.WithLabelValues(strategy, outcome),
	)
}

// DurationSeriesForTest returns the number of duration
// histograms with at least one observation.
func (m *Metrics) DurationSeriesForTest() int {
	return testutil.CollectAndCount(m.duration)
}
