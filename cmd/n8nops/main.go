package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/n8nops/internal/analysis"
	"github.com/user/n8nops/internal/api"
	"github.com/user/n8nops/internal/automation"
	"github.com/user/n8nops/internal/config"
	"github.com/user/n8nops/internal/db"
	"github.com/user/n8nops/internal/engine"
	"github.com/user/n8nops/internal/git"
	"github.com/user/n8nops/internal/hub"
	"github.com/user/n8nops/internal/n8n"
	"github.com/user/n8nops/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	backend := n8n.NewClient(n8n.Options{
		BaseURL:      cfg.BackendURL,
		APIKey:       cfg.APIKey,
		WorkflowsDir: cfg.WorkflowsDir,
	})

	vcs, err := git.NewClient(cfg.RepoPath)
	if err != nil {
		slog.Error("failed to set up git client", "error", err)
		os.Exit(1)
	}

	analyzer, err := analysis.New(cfg.WorkflowsDir)
	if err != nil {
		slog.Error("failed to set up analyzer", "error", err)
		os.Exit(1)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load pattern catalog", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Options{
		Backend:        backend,
		VCS:            vcs,
		Analyzer:       analyzer,
		Env:            config.NewChecker(cfg),
		Search:         engine.NotImplementedSearch{},
		Catalog:        catalog,
		LogRepo:        db.NewInstructionLogRepo(conn.SQL()),
		HandlerTimeout: cfg.HandlerTimeout,
	})
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	h := hub.New(cfg.Token, len(eng.TaskTypes()))
	h.SetOnInstruction(func(instruction string, callerContext map[string]any) {
		resp := eng.ExecuteInstruction(ctx, instruction, callerContext)
		h.BroadcastResponse(&resp)
	})
	go h.Run(ctx)

	if cfg.SnapshotInterval > 0 {
		snapshotter := automation.NewSnapshotter(automation.SnapshotterConfig{
			Interval: cfg.SnapshotInterval,
			Backend:  backend,
			VCS:      vcs,
		})
		go snapshotter.Run(ctx)
	}

	if cfg.PrintToken {
		fmt.Printf("\nn8nops running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)
	}

	srv := server.New(cfg, h, api.NewRouter(eng, cfg.Token))
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func loadCatalog(cfg *config.Config) (*engine.Catalog, error) {
	if cfg.CatalogDir == "" {
		return engine.DefaultCatalog()
	}
	return engine.LoadCatalog(cfg.CatalogDir)
}
