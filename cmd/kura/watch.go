package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Ingest new files as they appear in directories",
		Long: `Watch monitors the given directories, or watch.directories from the config,
and ingests and embeds each new supported file once writes to it settle.
Files already in the store are left as they are, and removed files keep
their stored documents; use delete for that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = a.cfg.Watch.Directories
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no directories to watch: pass them as arguments or set watch.directories")
			}
			if recursive {
				a.cfg.Ingest.Recursive = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := initializeComponents(ctx, a.cfg, a.logger, componentOptions{})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Indexer.Prepare(ctx); err != nil {
				return err
			}

			w := newDirectoryWatcher(a, dirs, c.Indexer, a.logger)
			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d directories, press Ctrl+C to stop\n", len(w.Directories()))
			a.logger.Info("watch started", zap.Strings("directories", w.Directories()))
			w.SyncExistingFiles()

			<-ctx.Done()
			w.Stop()
			w.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "watch subdirectories too")
	return cmd
}
