// Package source records build provenance from the Git checkout containing
// the environment descriptor.
//
// This package wraps the Git CLI (via os/exec) rather than using a Go Git
// library: the repositories kiln builds from may use any Git feature
// (worktrees, shallow clones, sparse checkouts), and only the CLI handles
// all of them consistently. Provenance is best-effort — building from a
// plain directory that is not a Git checkout is supported, and callers
// treat ErrNotRepository as "no provenance" rather than a failure.
package source

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mmr-tortoise/kiln/internal/model"
)

// ErrNotRepository is returned when the inspected directory is not inside
// a Git working tree.
var ErrNotRepository = errors.New("not a git repository")

// Info is the provenance captured for a build: the commit it was produced
// from and whether the working tree had uncommitted changes.
type Info struct {
	// Root is the absolute path to the top of the working tree.
	Root string

	// Revision is the full commit SHA of HEAD.
	Revision string

	// Dirty indicates uncommitted changes in tracked files. A dirty tree
	// means the revision alone does not identify the built sources.
	Dirty bool
}

// Describe collects provenance for the working tree containing dir.
// It returns ErrNotRepository (wrapped) when dir is not a Git checkout.
func Describe(dir string) (*Info, error) {
	root, err := RepoRoot(dir)
	if err != nil {
		return nil, err
	}
	rev, err := Revision(dir)
	if err != nil {
		return nil, err
	}
	dirty, err := Dirty(dir)
	if err != nil {
		return nil, err
	}
	return &Info{Root: root, Revision: rev, Dirty: dirty}, nil
}

// RepoRoot returns the absolute path to the top-level directory of the
// working tree containing dir, using `git rev-parse --show-toplevel`.
// For worktrees this is the worktree root, not the main repository.
func RepoRoot(dir string) (string, error) {
	output, err := runGit(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Revision returns the full commit SHA of HEAD at dir.
func Revision(dir string) (string, error) {
	output, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Dirty reports whether the working tree at dir has uncommitted changes to
// tracked files. Untracked files do not count: they cannot affect a build
// that compiles only tracked sources, and counting them makes every
// checkout with local scratch files look unreproducible.
func Dirty(dir string) (bool, error) {
	output, err := runGit(dir, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

// runGit executes a git command in the given directory via the -C flag,
// which git handles itself and works with every subcommand. Stdout is
// returned on success; on failure stderr is folded into the error message.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if strings.Contains(stderrStr, "not a git repository") {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGeneralError, message, err)
	}
	return stdout.String(), nil
}
