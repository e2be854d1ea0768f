// Package vcs switches the audited project between git branches.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrNotRepository = errors.New("not a git repository")

// Checkout switches repoPath to the named branch. Any failure here aborts
// the whole branch batch; there is no per-URL recovery from a bad checkout.
func Checkout(ctx context.Context, repoPath, branch string) error {
	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}
	// .git may be a directory or, for worktrees, a file.
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}

	out, err := runGit(ctx, repoPath, "checkout", branch)
	if err != nil {
		return fmt.Errorf("checkout of %q failed: %s", branch, out)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return strings.TrimSpace(out.String()), err
}
