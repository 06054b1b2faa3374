// Package gitsync replicates newly created record files to a git remote.
//
// The manager reconciles the local repository with a remote whose branch
// topology and content are unknown in advance, then consumes sync jobs on
// a bounded worker pool. Replication is strictly asynchronous and
// non-fatal: a job that exhausts its retry budget is logged and abandoned,
// and its outcome never changes the result already returned to the caller
// that created the record.
package gitsync

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/memvault-mcp/pkg/types"
)

// Config holds replication settings. All values arrive validated.
type Config struct {
	RepoDir        string        // git repository root; record files live in FilesSubdir under it
	FilesSubdir    string        // default "files"
	RemoteURL      string        // empty means commit locally only
	DefaultBranch  string        // fallback branch literal, default "main"
	RetryAttempts  int           // per-job attempt budget
	RetryDelay     time.Duration // pause between attempts
	CommandTimeout time.Duration // per git invocation
	CloneTimeout   time.Duration // clones get a longer budget
	Workers        int           // worker pool size
	QueueSize      int           // buffered job queue capacity
}

func (c *Config) applyDefaults() {
	if c.FilesSubdir == "" {
		c.FilesSubdir = "files"
	}
	if c.DefaultBranch == "" {
		c.DefaultBranch = "main"
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if c.CloneTimeout <= 0 {
		c.CloneTimeout = 5 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// job is one enqueued replication unit: a record to stage, commit, and
// push. The uid only correlates log lines.
type job struct {
	uid      string
	memoryID string
	filename string
	attempts int
}

// Manager owns repository reconciliation and the background sync workers.
type Manager struct {
	cfg    Config
	runner Runner
	log    zerolog.Logger

	mu       sync.Mutex
	branch   string
	tracking bool
	closed   bool

	jobs    chan job
	group   *errgroup.Group
	cancel  context.CancelFunc
	started bool
}

// New creates a Manager. A nil runner defaults to the git executable.
func New(cfg Config, runner Runner, log zerolog.Logger) *Manager {
	cfg.applyDefaults()
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Manager{
		cfg:    cfg,
		runner: runner,
		log:    log.With().Str("component", "gitsync").Logger(),
		jobs:   make(chan job, cfg.QueueSize),
	}
}

// run executes one git command under the per-command timeout.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	return m.runWithTimeout(ctx, m.cfg.CommandTimeout, dir, args...)
}

func (m *Manager) runWithTimeout(ctx context.Context, timeout time.Duration, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.runner.Run(cctx, dir, args...)
}

// Initialize detects the repository state, reconciles it, and resolves the
// working branch and its tracking configuration.
func (m *Manager) Initialize(ctx context.Context) error {
	state := m.detectState(ctx)
	m.log.Info().Stringer("state", state).Str("remote", m.cfg.RemoteURL).Msg("reconciling repository")

	switch state {
	case StateNewLocal:
		if err := m.initLocal(ctx); err != nil {
			return err
		}
	case StateExistingRemote:
		if err := m.cloneRemote(ctx); err != nil {
			return err
		}
	case StateExistingLocal, StateSynchronized:
		// Nothing to create, but the origin remote may be missing or stale
		// on a repository initialized before a remote was configured.
		m.ensureRemote(ctx)
	}

	branch := m.resolveDefaultBranch(ctx)
	tracking := m.establishTracking(ctx, branch)

	m.mu.Lock()
	m.branch = branch
	m.tracking = tracking
	m.mu.Unlock()

	m.log.Info().Str("branch", branch).Bool("tracking", tracking).Msg("repository ready")
	return nil
}

// initLocal initializes an empty repository on the default branch, sets a
// commit identity when none is configured, and points origin at the
// configured remote.
func (m *Manager) initLocal(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.RepoDir, 0o755); err != nil {
		return &types.SyncError{Op: "init", Err: err}
	}
	branch := m.cfg.DefaultBranch
	if _, err := m.run(ctx, m.cfg.RepoDir, "init", "-b", branch); err != nil {
		return &types.SyncError{Op: "init", Err: err}
	}
	if _, err := m.run(ctx, m.cfg.RepoDir, "config", "user.name"); err != nil {
		if _, err := m.run(ctx, m.cfg.RepoDir, "config", "user.name", "MemVault"); err != nil {
			m.log.Warn().Err(err).Msg("could not set commit identity")
		}
	}
	if _, err := m.run(ctx, m.cfg.RepoDir, "config", "user.email"); err != nil {
		if _, err := m.run(ctx, m.cfg.RepoDir, "config", "user.email", "memvault@localhost"); err != nil {
			m.log.Warn().Err(err).Msg("could not set commit email")
		}
	}
	if m.cfg.RemoteURL != "" {
		if _, err := m.run(ctx, m.cfg.RepoDir, "remote", "add", "origin", m.cfg.RemoteURL); err != nil {
			m.log.Warn().Err(err).Msg("could not add remote")
		}
	}
	return nil
}

// ensureRemote points origin at the configured remote URL on an existing
// repository: added when absent, corrected when it names a different URL.
// Without this, tracking setup and every push would target a remote that
// does not exist.
func (m *Manager) ensureRemote(ctx context.Context) {
	if m.cfg.RemoteURL == "" {
		return
	}
	current, err := m.run(ctx, m.cfg.RepoDir, "remote", "get-url", "origin")
	if err != nil {
		if _, err := m.run(ctx, m.cfg.RepoDir, "remote", "add", "origin", m.cfg.RemoteURL); err != nil {
			m.log.Warn().Err(err).Msg("could not add remote")
		}
		return
	}
	if strings.TrimSpace(current) != m.cfg.RemoteURL {
		if _, err := m.run(ctx, m.cfg.RepoDir, "remote", "set-url", "origin", m.cfg.RemoteURL); err != nil {
			m.log.Warn().Err(err).Msg("could not update remote url")
		}
	}
}

// cloneRemote clones the configured remote. A reachable but empty remote
// cannot be cloned usefully, so it falls back to local initialization
// pointed at that remote.
func (m *Manager) cloneRemote(ctx context.Context) error {
	_, err := m.runWithTimeout(ctx, m.cfg.CloneTimeout, "",
		"clone", "--single-branch", "--depth", "1", m.cfg.RemoteURL, m.cfg.RepoDir)
	if err == nil {
		return nil
	}
	if m.remoteEmpty(ctx) {
		m.log.Info().Msg("remote is empty, initializing locally instead of cloning")
		return m.initLocal(ctx)
	}
	return &types.SyncError{Op: "clone", Err: err}
}

// establishTracking links the local branch to its remote counterpart.
// When tracking cannot be established, pushes fall back to naming the
// remote and branch explicitly.
func (m *Manager) establishTracking(ctx context.Context, branch string) bool {
	if m.cfg.RemoteURL == "" || !m.localRepoExists() {
		return false
	}
	if _, err := m.run(ctx, m.cfg.RepoDir, "fetch", "origin", branch); err != nil {
		m.log.Debug().Err(err).Str("branch", branch).Msg("fetch before tracking failed")
	}
	if _, err := m.run(ctx, m.cfg.RepoDir, "branch", "--set-upstream-to=origin/"+branch, branch); err != nil {
		m.log.Warn().Err(err).Str("branch", branch).Msg("tracking not established, pushes will name the remote explicitly")
		return false
	}
	return true
}

// Start launches the worker pool. Jobs enqueued before Start wait in the
// buffered queue.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case j, ok := <-m.jobs:
					if !ok {
						return nil
					}
					m.runJob(gctx, j)
				}
			}
		})
	}
	m.group = g
}

// Enqueue schedules a record for replication. It never blocks the caller:
// when the queue is full, or the manager has already shut down, the job is
// dropped with a logged warning, which is acceptable because replication
// failure is non-fatal by contract. The send happens under m.mu so a
// racing Shutdown cannot close the queue out from under it.
func (m *Manager) Enqueue(memoryID, filename string) {
	j := job{uid: uuid.NewString(), memoryID: memoryID, filename: filename}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.log.Warn().Str("memory_id", memoryID).Msg("sync manager stopped, dropping job")
		return
	}
	select {
	case m.jobs <- j:
		m.log.Debug().Str("job", j.uid).Str("memory_id", memoryID).Msg("sync job enqueued")
	default:
		m.log.Warn().Str("memory_id", memoryID).Msg("sync queue full, dropping job")
	}
}

// Shutdown closes the queue and waits for workers to drain it. When ctx
// expires first, in-flight jobs are abandoned; local record files are
// never touched by replication, so abandonment cannot corrupt state.
// Enqueue calls arriving after (or racing) Shutdown are dropped, never
// sent on the closed queue.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	if m.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		m.cancel()
		<-done
		m.log.Warn().Msg("shutdown deadline reached, abandoning in-flight sync jobs")
		return ctx.Err()
	}
}

// runJob executes one job with the configured retry budget. Failures are
// logged, never propagated.
func (m *Manager) runJob(ctx context.Context, j job) {
	log := m.log.With().Str("job", j.uid).Str("memory_id", j.memoryID).Logger()
	for j.attempts = 1; j.attempts <= m.cfg.RetryAttempts; j.attempts++ {
		err := m.syncOnce(ctx, j)
		if err == nil {
			log.Info().Int("attempts", j.attempts).Msg("memory replicated")
			return
		}
		log.Warn().Err(err).Int("attempt", j.attempts).Msg("sync attempt failed")

		if j.attempts < m.cfg.RetryAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.RetryDelay):
			}
		}
	}
	log.Error().Int("attempts", m.cfg.RetryAttempts).Msg("retry budget exhausted, abandoning sync job")
}

// syncOnce stages, commits, and pushes a single record file.
func (m *Manager) syncOnce(ctx context.Context, j job) error {
	relPath := path.Join(m.cfg.FilesSubdir, j.filename)

	if _, err := m.run(ctx, m.cfg.RepoDir, "add", relPath); err != nil {
		return &types.SyncError{Op: "add", Err: err}
	}

	message := fmt.Sprintf("Add memory %s (%s)", j.memoryID, j.filename)
	if out, err := m.run(ctx, m.cfg.RepoDir, "commit", "-m", message); err != nil {
		// A retry after a failed push finds the commit already made.
		if !strings.Contains(out, "nothing to commit") && !strings.Contains(err.Error(), "nothing to commit") {
			return &types.SyncError{Op: "commit", Err: err}
		}
	}

	if m.cfg.RemoteURL == "" {
		return nil
	}

	m.mu.Lock()
	branch, tracking := m.branch, m.tracking
	m.mu.Unlock()

	pushArgs := []string{"push"}
	if !tracking {
		pushArgs = append(pushArgs, "origin", branch)
	}
	if _, err := m.run(ctx, m.cfg.RepoDir, pushArgs...); err != nil {
		// Divergence: the remote wins. Rebase our commits onto it and let
		// the retry loop push again; conflicts are logged, never forced.
		m.log.Warn().Err(err).Str("branch", branch).Msg("push rejected, rebasing onto remote")
		if _, rerr := m.run(ctx, m.cfg.RepoDir, "pull", "--rebase", "origin", branch); rerr != nil {
			m.log.Error().Err(rerr).Str("branch", branch).Msg("rebase onto remote failed")
			if _, aerr := m.run(ctx, m.cfg.RepoDir, "rebase", "--abort"); aerr != nil {
				m.log.Debug().Err(aerr).Msg("rebase abort failed")
			}
		}
		return &types.SyncError{Op: "push", Err: err}
	}
	return nil
}
