package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMissingPath(t *testing.T) {
	err := Checkout(context.Background(), filepath.Join(t.TempDir(), "nope"), "main")
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestCheckoutPlainDirectory(t *testing.T) {
	err := Checkout(context.Background(), t.TempDir(), "main")
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestCheckoutSwitchesBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	git("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0644))
	git("add", ".")
	git("commit", "-m", "initial")
	git("branch", "feature")

	require.NoError(t, Checkout(context.Background(), dir, "feature"))

	out, err := runGit(context.Background(), dir, "rev-parse", "--abbrev-ref", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, "feature", out)
}

func TestCheckoutUnknownBranch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	out, err := exec.Command("git", "-C", dir, "init", "-b", "main").CombinedOutput()
	require.NoError(t, err, string(out))

	err = Checkout(context.Background(), dir, "does-not-exist")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotRepository))
}
