// Package git implements the version-control collaborator by shelling out to
// the git binary.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/user/n8nops/internal/engine"
)

// Client runs git commands inside a fixed repository directory.
type Client struct {
	dir string
}

func NewClient(dir string) (*Client, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("repository directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve repository directory: %w", err)
	}
	return &Client{dir: filepath.Clean(abs)}, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		op := strings.Join(args, " ")
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s failed: %s", op, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %s failed: %w", op, err)
	}
	return string(out), nil
}

// IsRepo reports whether the directory is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// Status returns the working tree state parsed from porcelain output.
func (c *Client) Status(ctx context.Context) (*engine.RepoStatus, error) {
	branch, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	status := ParsePorcelain(out)
	status.Branch = strings.TrimSpace(branch)
	return status, nil
}

// Commit stages the given paths (everything when none are given) and commits
// them. It returns the new commit hash and the number of files changed.
func (c *Client) Commit(ctx context.Context, message string, paths ...string) (*engine.CommitResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("commit message is required")
	}
	addArgs := []string{"add", "-A"}
	if len(paths) > 0 {
		addArgs = append([]string{"add", "--"}, paths...)
	}
	if _, err := c.run(ctx, addArgs...); err != nil {
		return nil, err
	}

	staged, err := c.run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}
	files := nonEmptyLines(staged)
	if len(files) == 0 {
		return nil, fmt.Errorf("nothing to commit: working tree clean")
	}

	if _, err := c.run(ctx, "commit", "-m", message); err != nil {
		return nil, err
	}
	hash, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	return &engine.CommitResult{
		Hash:         strings.TrimSpace(hash),
		Message:      message,
		FilesChanged: len(files),
	}, nil
}

// ParsePorcelain converts `git status --porcelain` output into a RepoStatus
// without the branch field.
func ParsePorcelain(out string) *engine.RepoStatus {
	status := &engine.RepoStatus{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if path == "" {
			continue
		}
		if code == "??" {
			status.Untracked = append(status.Untracked, path)
		} else {
			status.Modified = append(status.Modified, path)
		}
	}
	status.Clean = len(status.Modified) == 0 && len(status.Untracked) == 0
	return status
}

func nonEmptyLines(out string) []string {
	lines := []string{}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return lines
}
