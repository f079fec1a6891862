package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store counts, embedding model and disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			if err := requireDatabase(a.cfg.Storage); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := storage.New(ctx, a.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()
			status, err := storage.Stats(ctx, store, a.cfg.Storage)
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}
