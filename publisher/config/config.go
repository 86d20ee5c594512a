// Package config loads publishing settings from built-in
// defaults, an optional YAML file, and the environment, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Environment keys read by Load.
const (
	EnvToken      = "GITHUB_TOKEN"
	EnvRepo       = "GITHUB_REPO"
	EnvBranch     = "GIT_BRANCH"
	EnvWorkTree   = "PUBLISH_WORK_TREE"
	EnvRemote     = "GIT_REMOTE"
	EnvProvider   = "GIT_PROVIDER"
	EnvAPIHost    = "GIT_API_HOST"
	EnvConfigFile = "PUBLISH_CONFIG"
)

// Defaults applied before the file and environment.
const (
	DefaultBranch = "main"
	DefaultRemote = "origin"
)

// ErrInvalid is returned for settings that cannot be
// used.
var ErrInvalid = errors.New("invalid configuration")

// Provider names the hosting platform used for remote
// commits.
type Provider string

const (
	// ProviderGitHub commits through the GitHub git
	// data API.
	ProviderGitHub Provider = "github"
	// ProviderGitLab commits through the GitLab commits
	// API.
	ProviderGitLab Provider = "gitlab"
)

// Config holds the settings of one publish call.
type Config struct {
	// Token authenticates against the hosting API.
	Token string `yaml:"token"`
	// Repo identifies the target repository:
	// "owner/name" on GitHub, a project path or id on
	// GitLab.
	Repo string `yaml:"repo"`
	// Branch receives the commits.
	Branch string `yaml:"branch"`
	// WorkTree is the root of the local checkout.
	WorkTree string `yaml:"work_tree"`
	// Remote is the git remote pushed to from WorkTree.
	Remote string `yaml:"remote"`
	// Provider selects the hosting platform.
	Provider Provider `yaml:"provider"`
	// APIHost is a GitHub Enterprise hostname or a
	// GitLab base URL.
	APIHost string `yaml:"api_host"`
}

// LookupFunc returns the value of an environment key and
// whether it is set. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// FromEnv loads the process configuration, reading the
// YAML file named by PUBLISH_CONFIG when set.
func FromEnv() (Config, error) {
	return Load(os.Getenv(EnvConfigFile), os.LookupEnv)
}

// Load merges defaults, the YAML file at path (skipped
// when path is empty) and the values returned by lookup,
// then checks the settings every strategy needs. A
// validation failure still returns the merged settings
// alongside the error.
func Load(path string, lookup LookupFunc) (Config, error) {
	const errCtx = "loading config"

	cfg := Config{
		Branch:   DefaultBranch,
		Remote:   DefaultRemote,
		Provider: ProviderGitHub,
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator supplied
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", errCtx, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf(
				"%s: parse %s: %w", errCtx, path, err,
			)
		}
	}

	if lookup != nil {
		overrides := []struct {
			key string
			dst *string
		}{
			{EnvToken, &cfg.Token},
			{EnvRepo, &cfg.Repo},
			{EnvBranch, &cfg.Branch},
			{EnvWorkTree, &cfg.WorkTree},
			{EnvRemote, &cfg.Remote},
			{EnvAPIHost, &cfg.APIHost},
		}

		for _, o := range overrides {
			if v, ok := lookup(o.key); ok && strings.TrimSpace(v) != "" {
				*o.dst = strings.TrimSpace(v)
			}
		}

		if v, ok := lookup(EnvProvider); ok && strings.TrimSpace(v) != "" {
			cfg.Provider = Provider(
				strings.ToLower(strings.TrimSpace(v)),
			)
		}
	}

	if cfg.WorkTree == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf(
				"%s: working directory: %w", errCtx, err,
			)
		}

		cfg.WorkTree = wd
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, nil
}

// HasRemoteCredentials reports whether both a token and a
// repository identifier are set.
func (c Config) HasRemoteCredentials() bool {
	return c.Token != "" && c.Repo != ""
}

// Validate checks the settings every strategy needs.
// Remote-only settings are checked by ValidateRemote.
func (c Config) Validate() error {
	if c.Branch == "" {
		return fmt.Errorf("%w: branch must be set", ErrInvalid)
	}

	return nil
}

// ValidateRemote checks the settings used to commit
// through a hosting provider's API.
func (c Config) ValidateRemote() error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Provider {
	case ProviderGitHub:
		if _, _, err := c.SplitRepo(); err != nil {
			return err
		}
	case ProviderGitLab:
		if c.Repo == "" {
			return fmt.Errorf("%w: repo must be set", ErrInvalid)
		}
	default:
		return fmt.Errorf(
			"%w: unknown provider %q", ErrInvalid, c.Provider,
		)
	}

	return nil
}

// SplitRepo splits a GitHub "owner/name" identifier.
func (c Config) SplitRepo() (string, string, error) {
	owner, name, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || name == "" ||
		strings.Contains(name, "/") {
		return "", "", fmt.Errorf(
			"%w: repo %q is not owner/name", ErrInvalid, c.Repo,
		)
	}

	return owner, name, nil
}
