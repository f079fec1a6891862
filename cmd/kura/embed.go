package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/indexer"
)

func newEmbedCmd(a *app) *cobra.Command {
	var batchSize int
	var noBar bool
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed every stored fragment that has no vector yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize > 0 {
				a.cfg.Ingest.BatchSize = batchSize
			}
			var opts componentOptions
			opts.existingStore = true
			if !noBar {
				opts.indexerOpts = append(opts.indexerOpts, indexer.WithProgress(newProgressBars().update))
			}
			ctx := cmd.Context()
			c, err := initializeComponents(ctx, a.cfg, a.logger, opts)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Indexer.Prepare(ctx); err != nil {
				return err
			}
			report, err := c.Indexer.EmbedPending(ctx)
			cli.WriteIngestSummary(cmd.OutOrStdout(), nil, report)
			return err
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "fragments per embedding request (overrides config)")
	cmd.Flags().BoolVar(&noBar, "no-progress", false, "disable the progress bar")
	return cmd
}
