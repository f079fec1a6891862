package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/server"
	"github.com/hyperjump/kura/internal/watcher"
	"github.com/hyperjump/kura/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var watch bool
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes search, ask, ingest and document management over HTTP.
With --watch, the directories listed under watch.directories are monitored
and new supported files are ingested and embedded as they appear.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), a, watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "watch the configured directories")
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(parent context.Context, a *app, watch bool) error {
	cfg := a.cfg
	logger, err := utils.NewLogger(cfg.Debug || a.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := initializeComponents(ctx, cfg, logger, componentOptions{withLLM: true})
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Indexer.Prepare(ctx); err != nil {
		return err
	}

	var opts []server.Option
	var w *watcher.Watcher
	if watch {
		w = newDirectoryWatcher(a, cfg.Watch.Directories, c.Indexer, logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		opts = append(opts, server.WithWatcher(w, a.resolvedPath))
		logger.Info("watching directories", zap.Strings("directories", w.Directories()))
	}
	srv := server.NewServer(c.Engine, c.Indexer, c.Storage, cfg, logger, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if w != nil {
		g.Go(func() error {
			w.SyncExistingFiles()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if w != nil {
			w.Stop()
			w.Wait()
		}
		return srv.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDirectoryWatcher(a *app, dirs []string, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	cfg := a.cfg
	return watcher.New(dirs, cfg.Ingest.Recursive,
		watcher.NewIndexHandler(idx, logger),
		watcher.WithDebounce(cfg.Watch.Debounce()),
		watcher.WithExclude(cfg.Ingest.Exclude),
		watcher.WithLogger(logger),
	)
}
