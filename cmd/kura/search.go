package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
)

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	var format string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the stored fragments closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			if limit == 0 {
				limit = a.cfg.Query.DefaultResults
			}
			ctx := cmd.Context()
			c, err := initializeComponents(ctx, a.cfg, a.logger, componentOptions{existingStore: true})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Engine.CheckModel(ctx); err != nil {
				return err
			}
			resp, err := c.Engine.Retrieve(ctx, buildSearchQuery(args), limit)
			if err != nil {
				return err
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results, 1-20 (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}
