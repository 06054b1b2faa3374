package gitsync

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a single git command and returns its trimmed stdout.
// Replication logic only talks to git through this interface so the state
// machine can be exercised against fakes.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner invokes the git binary. Callers bound every invocation with a
// context deadline so an unresponsive remote cannot stall a worker.
type execRunner struct {
	gitPath string
}

// NewExecRunner returns a Runner backed by the git executable on PATH.
func NewExecRunner() Runner {
	return &execRunner{gitPath: "git"}
}

func (r *execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("git %s: %w: %s", args[0], err, detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}
