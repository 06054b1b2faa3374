package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// State describes the replication relationship between the local record
// directory and the configured remote. It is computed fresh on each
// reconciliation attempt and never persisted.
type State int

const (
	// StateNewLocal: no usable local repository and no reachable remote.
	StateNewLocal State = iota
	// StateExistingLocal: a local repository exists; it may or may not
	// have a remote, and may be behind it.
	StateExistingLocal
	// StateExistingRemote: a reachable remote exists but there is no
	// usable local repository yet, so a clone is required.
	StateExistingRemote
	// StateSynchronized: local and remote are reconciled and tracked.
	StateSynchronized
)

func (s State) String() string {
	switch s {
	case StateNewLocal:
		return "new_local"
	case StateExistingLocal:
		return "existing_local"
	case StateExistingRemote:
		return "existing_remote"
	case StateSynchronized:
		return "synchronized"
	default:
		return "unknown"
	}
}

// commonBranches is the probe order when the remote's default branch
// cannot be resolved via a symbolic-reference lookup.
var commonBranches = []string{"main", "master", "develop"}

// detectState classifies the repository per the four replication states.
// Detection errors degrade to StateNewLocal, which is always safe to
// initialize from.
func (m *Manager) detectState(ctx context.Context) State {
	localExists := m.localRepoExists()
	remoteConfigured := m.cfg.RemoteURL != ""

	if !localExists && !remoteConfigured {
		return StateNewLocal
	}

	if localExists {
		if _, err := m.run(ctx, m.cfg.RepoDir, "remote", "get-url", "origin"); err != nil {
			return StateExistingLocal
		}
		if m.isSynchronized(ctx) {
			return StateSynchronized
		}
		return StateExistingLocal
	}

	// No local repository but a remote is configured: clone if reachable,
	// otherwise start fresh locally.
	if m.remoteAccessible(ctx) {
		return StateExistingRemote
	}
	return StateNewLocal
}

func (m *Manager) localRepoExists() bool {
	info, err := os.Stat(filepath.Join(m.cfg.RepoDir, ".git"))
	return err == nil && info.IsDir()
}

// remoteAccessible probes the configured remote with ls-remote.
func (m *Manager) remoteAccessible(ctx context.Context) bool {
	_, err := m.run(ctx, "", "ls-remote", "--heads", m.cfg.RemoteURL)
	return err == nil
}

// remoteEmpty reports whether the remote is reachable but has no branches
// yet (a freshly created repository).
func (m *Manager) remoteEmpty(ctx context.Context) bool {
	out, err := m.run(ctx, "", "ls-remote", "--heads", m.cfg.RemoteURL)
	return err == nil && strings.TrimSpace(out) == ""
}

// isSynchronized reports whether the current local branch has no commits
// to pull from its remote counterpart.
func (m *Manager) isSynchronized(ctx context.Context) bool {
	if _, err := m.run(ctx, m.cfg.RepoDir, "fetch", "origin"); err != nil {
		return false
	}
	branch, err := m.run(ctx, m.cfg.RepoDir, "branch", "--show-current")
	if err != nil || branch == "" {
		return false
	}
	out, err := m.run(ctx, m.cfg.RepoDir, "rev-list", "--count", "HEAD..origin/"+branch)
	return err == nil && out == "0"
}

// resolveDefaultBranch determines the working branch name: the remote's
// HEAD symbolic reference first, then a probe of common branch names, then
// the configured fallback.
func (m *Manager) resolveDefaultBranch(ctx context.Context) string {
	if m.cfg.RemoteURL != "" {
		if out, err := m.run(ctx, "", "ls-remote", "--symref", m.cfg.RemoteURL, "HEAD"); err == nil {
			for _, line := range strings.Split(out, "\n") {
				if strings.HasPrefix(line, "ref: refs/heads/") {
					fields := strings.Fields(line)
					return strings.TrimPrefix(fields[1], "refs/heads/")
				}
			}
		}
		for _, branch := range commonBranches {
			if out, err := m.run(ctx, "", "ls-remote", "--heads", m.cfg.RemoteURL, branch); err == nil && strings.TrimSpace(out) != "" {
				m.log.Debug().Str("branch", branch).Msg("resolved default branch by probe")
				return branch
			}
		}
	}
	if m.localRepoExists() {
		if branch, err := m.run(ctx, m.cfg.RepoDir, "branch", "--show-current"); err == nil && branch != "" {
			return branch
		}
	}
	return m.cfg.DefaultBranch
}
