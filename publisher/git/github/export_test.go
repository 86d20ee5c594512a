package github

import gh "github.com/google/go-github/v68/github"

// NewBackendWithClientForTest builds a Backend around a
// prepared client, bypassing credential validation.
func NewBackendWithClientForTest(
	client *gh.Client,
	cfg Config,
) *Backend {
	return newBackend(client, cfg)
}
