package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vectorlib/vectordb/internal/config"
	"github.com/vectorlib/vectordb/internal/httpapi"
	"github.com/vectorlib/vectordb/internal/service"
	"github.com/vectorlib/vectordb/internal/store"
)

const httpShutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vectordb HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo, err := buildRepository(cfg)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	svc := service.New(repo, service.Options{
		CacheSize:          cfg.Cache.Size,
		DisableSearchDedup: !cfg.Search.DedupEnabled,
	})
	srv := httpapi.New(svc, nil)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Routes(),
	}

	if _, statErr := os.Stat(configPath); statErr == nil {
		stopWatch, err := config.Watch(configPath,
			func(reloaded *config.Config) {
				svc.SetSearchDedup(reloaded.Search.DedupEnabled)
				slog.Info("config reloaded", slog.String("path", configPath), slog.Bool("search_dedup", reloaded.Search.DedupEnabled))
			},
			func(err error) {
				slog.Error("config reload failed, keeping previous config", slog.String("path", configPath), slog.String("error", err.Error()))
			},
		)
		if err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		defer stopWatch()
	}

	printBanner(cmd, cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// buildRepository constructs the leader repository from cfg.Backend, wrapping
// it in a Replicator when followers are configured.
func buildRepository(cfg *config.Config) (store.Repository, error) {
	leader, err := store.New(cfg.Backend, store.BackendPaths{
		JSONPath:   cfg.JSONPath,
		BlobPath:   cfg.PicklePath,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, err
	}
	if len(cfg.Replication.Followers) == 0 {
		return leader, nil
	}

	followers := make([]store.Repository, 0, len(cfg.Replication.Followers))
	for _, f := range cfg.Replication.Followers {
		follower, err := store.New(f.Backend, store.BackendPaths{
			JSONPath:   f.JSONPath,
			BlobPath:   f.PicklePath,
			SQLitePath: f.SQLitePath,
		})
		if err != nil {
			leader.Close()
			for _, built := range followers {
				built.Close()
			}
			return nil, err
		}
		followers = append(followers, follower)
	}
	return store.NewReplicator(leader, followers), nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintf(out, "vectordb listening on %s (backend=%s)\n", cfg.HTTP.Addr, cfg.Backend)
		return
	}
	fmt.Fprintf(out, "vectordb listening on %s backend=%s\n", cfg.HTTP.Addr, cfg.Backend)
}
