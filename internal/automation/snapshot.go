// Package automation runs the periodic workflow snapshot loop: export every
// workflow from the backend, then commit the workflows directory when it is
// dirty.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/n8nops/internal/engine"
)

const defaultSnapshotInterval = 10 * time.Minute

type SnapshotterConfig struct {
	Interval time.Duration
	Backend  engine.WorkflowBackend
	VCS      engine.VersionControl
}

type Snapshotter struct {
	interval time.Duration
	backend  engine.WorkflowBackend
	vcs      engine.VersionControl

	onSnapshot func(hash string, filesChanged int)

	mu     sync.RWMutex
	paused bool
}

func NewSnapshotter(cfg SnapshotterConfig) *Snapshotter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &Snapshotter{
		interval: interval,
		backend:  cfg.Backend,
		vcs:      cfg.VCS,
	}
}

func (s *Snapshotter) SetOnSnapshot(fn func(hash string, filesChanged int)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onSnapshot = fn
	s.mu.Unlock()
}

func (s *Snapshotter) SetPaused(paused bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *Snapshotter) Run(ctx context.Context) {
	if s == nil || s.backend == nil || s.vcs == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce exports, checks the tree, and commits when dirty. Failures are
// logged and retried on the next tick; the loop never stops on error.
func (s *Snapshotter) runOnce(ctx context.Context) {
	if s.isPaused() {
		return
	}

	export, err := s.backend.ExportAll(ctx)
	if err != nil {
		slog.Warn("snapshot export failed", "error", err)
		return
	}

	status, err := s.vcs.Status(ctx)
	if err != nil {
		slog.Warn("snapshot status failed", "error", err)
		return
	}
	if status.Clean {
		return
	}

	msg := fmt.Sprintf("chore: snapshot %d workflows at %s", export.Count, time.Now().UTC().Format(time.RFC3339))
	commit, err := s.vcs.Commit(ctx, msg)
	if err != nil {
		slog.Warn("snapshot commit failed", "error", err)
		return
	}
	slog.Info("workflow snapshot committed", "hash", commit.Hash, "files", commit.FilesChanged)

	s.mu.RLock()
	notify := s.onSnapshot
	s.mu.RUnlock()
	if notify != nil {
		notify(commit.Hash, commit.FilesChanged)
	}
}

func (s *Snapshotter) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}
