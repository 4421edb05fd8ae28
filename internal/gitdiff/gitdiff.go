// Package gitdiff reports files added/modified/deleted between a branch
// and mainline, per spec.md §6's repository-diff interface. It shells out
// to the git binary rather than pulling in a Go git implementation: none
// of the example repos in the retrieval pack consume one as a library (the
// only go-git occurrence in the corpus is go-git's own source tree), while
// shelling a subprocess is the idiom spec.md's overlay refresh already
// relies on for the tool server.
package gitdiff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/railyard/codesearch/internal/railerr"
)

// Differ reports the repository diff between a worktree's HEAD and its
// mainline branch ("main" by convention; spec.md never names another).
type Differ struct {
	mainBranch string
}

// NewDiffer constructs a Differ comparing against mainBranch ("main" if empty).
func NewDiffer(mainBranch string) *Differ {
	if mainBranch == "" {
		mainBranch = "main"
	}
	return &Differ{mainBranch: mainBranch}
}

// ChangedFiles returns paths added, modified, or renamed (the new path) in
// main...HEAD, relative to worktree root, UTF-8.
func (d *Differ) ChangedFiles(ctx context.Context, worktree string) ([]string, error) {
	out, err := d.diffNameStatus(ctx, worktree)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, line := range out {
		status, path, ok := splitStatusLine(line)
		if !ok {
			continue
		}
		if status == "A" || status == "M" || strings.HasPrefix(status, "R") {
			changed = append(changed, path)
		}
	}
	return changed, nil
}

// DeletedFiles returns paths deleted in main...HEAD, relative to worktree root.
func (d *Differ) DeletedFiles(ctx context.Context, worktree string) ([]string, error) {
	out, err := d.diffNameStatus(ctx, worktree)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, line := range out {
		status, path, ok := splitStatusLine(line)
		if !ok {
			continue
		}
		if status == "D" {
			deleted = append(deleted, path)
		}
	}
	return deleted, nil
}

// HeadCommit returns the worktree's current HEAD commit hash.
func (d *Differ) HeadCommit(ctx context.Context, worktree string) (string, error) {
	out, err := d.run(ctx, worktree, "rev-parse", "HEAD")
	if err != nil {
		return "", railerr.Repo(err, "resolve HEAD commit in %s", worktree)
	}
	return strings.TrimSpace(out), nil
}

// Branch returns the worktree's current branch name, falling back to
// "unknown" on error per spec.md §6's accepted best-effort behavior.
func (d *Differ) Branch(ctx context.Context, worktree string) string {
	out, err := d.run(ctx, worktree, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "unknown"
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "unknown"
	}
	return branch
}

func (d *Differ) diffNameStatus(ctx context.Context, worktree string) ([]string, error) {
	out, err := d.run(ctx, worktree, "diff", "--name-status", d.mainBranch+"...HEAD")
	if err != nil {
		return nil, railerr.Repo(err, "diff %s...HEAD in %s", d.mainBranch, worktree)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	return strings.Split(strings.TrimRight(out, "\n"), "\n"), nil
}

func (d *Differ) run(ctx context.Context, worktree string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = worktree

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// splitStatusLine parses a `git diff --name-status` line into (status, path).
func splitStatusLine(line string) (status, path string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	// Renames emit "R100\told\tnew"; the destination path is last.
	return fields[0], fields[len(fields)-1], true
}
