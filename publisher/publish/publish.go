package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/tokura1222/music-platform/publisher/config"
	"github.com/tokura1222/music-platform/publisher/git"
)

// Result messages.
const (
	MessageInvalidRequest  = "invalid publish request"
	MessageInvalidConfig   = "publish configuration is invalid"
	MessageCommitted       = "committed and pushed"
	MessageUnchanged       = "changes were already committed"
	MessageGitFailed       = "git operation failed"
	MessageRemoteCommitted = "committed and pushed via remote API"
	MessageRemoteFailed    = "remote API git operation failed"
)

// ErrInvalidBatch is reported for a malformed message or
// file list.
var ErrInvalidBatch = errors.New("invalid publish request")

// CommitFile is one file of a publish batch.
type CommitFile struct {
	// Path is the slash separated location inside the
	// repository, e.g. "content/songs/foo.json".
	Path string
	// Content is the full file content. The remote
	// strategy uploads it; the local strategy commits
	// whatever is on disk.
	Content []byte
	// LocalPath overrides where the local strategy finds
	// the file. Defaults to Path under the work tree.
	LocalPath string
}

// Result is the outcome of one publish call.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// LoadFunc returns the configuration of one call.
// config.FromEnv satisfies it.
type LoadFunc func() (config.Config, error)

// Option customizes an Engine.
type Option func(*Engine)

// WithLocalBackend replaces the factory used for
// StrategyLocal.
func WithLocalBackend(f BackendFactory) Option {
	return func(e *Engine) {
		e.local = f
	}
}

// WithRemoteBackend replaces the factory used for
// StrategyRemoteAPI.
func WithRemoteBackend(f BackendFactory) Option {
	return func(e *Engine) {
		e.remote = f
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine commits batches with the strategy chosen from
// the configuration loaded for each call.
type Engine struct {
	load    LoadFunc
	local   BackendFactory
	remote  BackendFactory
	metrics *Metrics

	// localMu serializes runs against the shared work
	// tree.
	localMu sync.Mutex
}

// New returns an Engine reading its configuration through
// load, or config.FromEnv when load is nil.
func New(load LoadFunc, opts ...Option) *Engine {
	if load == nil {
		load = config.FromEnv
	}

	e := &Engine{
		load:   load,
		local:  LocalBackend,
		remote: RemoteBackend,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CurrentStrategy reports the strategy the current
// configuration selects. It has no side effects.
func (e *Engine) CurrentStrategy() Strategy {
	cfg, err := e.load()
	if err != nil {
		slog.Warn("loading publish config", "error", err)
	}

	return Select(cfg)
}

// CommitAndPush commits files to the configured branch in
// one commit with the given message and pushes it. Every
// outcome, including a panic in a backend, is reported in
// the returned Result.
func (e *Engine) CommitAndPush(
	ctx context.Context,
	message string,
	files []CommitFile,
) (res Result) {
	var strategy Strategy

	defer func() {
		if r := recover(); r != nil {
			slog.Error(
				"publish panicked",
				"strategy", strategy,
				"panic", r,
			)

			e.metrics.record(labelOf(strategy), outcomeFailed)
			res = Result{
				Message: failureMessage(strategy),
				Details: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	if err := validateBatch(message, files); err != nil {
		e.metrics.record(strategyNone, outcomeInvalid)

		return Result{
			Message: MessageInvalidRequest,
			Details: err.Error(),
		}
	}

	cfg, err := e.load()
	if err != nil {
		slog.Warn("loading publish config", "error", err)
		e.metrics.record(strategyNone, outcomeFailed)

		return Result{
			Message: MessageInvalidConfig,
			Details: err.Error(),
		}
	}

	strategy = Select(cfg)

	factory := e.local
	if strategy == StrategyRemoteAPI {
		factory = e.remote
	} else {
		e.localMu.Lock()
		defer e.localMu.Unlock()
	}

	slog.Info(
		"publishing",
		"strategy", strategy,
		"branch", cfg.Branch,
		"files", len(files),
	)

	start := time.Now()
	outcome, err := run(ctx, factory, cfg, message, files)
	e.metrics.observe(strategy, time.Since(start))

	if err != nil {
		slog.Warn(
			"publish failed",
			"strategy", strategy,
			"error", err,
		)
		e.metrics.record(string(strategy), outcomeFailed)

		msg := failureMessage(strategy)
		if errors.Is(err, config.ErrInvalid) {
			msg = MessageInvalidConfig
		}

		return Result{Message: msg, Details: details(err)}
	}

	slog.Info(
		"published",
		"strategy", strategy,
		"outcome", outcome,
	)
	e.metrics.record(string(strategy), outcome.String())

	return Result{
		Success: true,
		Message: successMessage(strategy, outcome),
	}
}

func run(
	ctx context.Context,
	factory BackendFactory,
	cfg config.Config,
	message string,
	files []CommitFile,
) (git.Outcome, error) {
	backend, err := factory(ctx, cfg)
	if err != nil {
		return git.OutcomeCommitted, err
	}

	return backend.Commit(ctx, message, files)
}

// validateBatch checks the message and the repository
// paths of files.
func validateBatch(message string, files []CommitFile) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: empty commit message", ErrInvalidBatch)
	}

	if len(files) == 0 {
		return fmt.Errorf("%w: no files", ErrInvalidBatch)
	}

	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		if err := validatePath(f.Path); err != nil {
			return err
		}

		if _, ok := seen[f.Path]; ok {
			return fmt.Errorf(
				"%w: duplicate path %q", ErrInvalidBatch, f.Path,
			)
		}

		seen[f.Path] = struct{}{}
	}

	return nil
}

func validatePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: empty path", ErrInvalidBatch)
	case strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/"):
		return fmt.Errorf(
			"%w: path %q has a leading or trailing slash",
			ErrInvalidBatch, p,
		)
	case strings.Contains(p, `\`):
		return fmt.Errorf(
			"%w: path %q contains a backslash", ErrInvalidBatch, p,
		)
	case path.Clean(p) != p || p == "." ||
		p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf(
			"%w: path %q is not clean", ErrInvalidBatch, p,
		)
	}

	return nil
}

// orphanedNote is appended to the details of a failure
// that left a commit no branch points at.
const orphanedNote = "; the new commit was created but the branch " +
	"was not updated, so it is unreferenced"

// details returns the diagnostic text carried by err.
func details(err error) string {
	text := err.Error()

	var d interface{ Details() string }
	if errors.As(err, &d) {
		text = d.Details()
	}

	var o interface{ Orphaned() bool }
	if errors.As(err, &o) && o.Orphaned() {
		text += orphanedNote
	}

	return text
}

func successMessage(s Strategy, o git.Outcome) string {
	switch {
	case s == StrategyRemoteAPI:
		return MessageRemoteCommitted
	case o == git.OutcomeUnchanged:
		return MessageUnchanged
	default:
		return MessageCommitted
	}
}

func failureMessage(s Strategy) string {
	if s == StrategyRemoteAPI {
		return MessageRemoteFailed
	}

	return MessageGitFailed
}

func labelOf(s Strategy) string {
	if s == "" {
		return strategyNone
	}

	return string(s)
}
