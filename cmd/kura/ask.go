package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
)

func newAskCmd(a *app) *cobra.Command {
	var limit int
	var format string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the closest stored fragments",
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
			c, err := initializeComponents(ctx, a.cfg, a.logger, componentOptions{existingStore: true, withLLM: true})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Engine.CheckModel(ctx); err != nil {
				return err
			}
			answer, err := c.Engine.Ask(ctx, buildSearchQuery(args), limit)
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), answer, out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "fragments used as context, 1-20 (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.cfg.Query.DefaultResults
			}
			ctx := cmd.Context()
			c, err := initializeComponents(ctx, a.cfg, a.logger, componentOptions{existingStore: true, withLLM: true})
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Engine.CheckModel(ctx); err != nil {
				return err
			}
			return cli.Chat(ctx, os.Stdin, cmd.OutOrStdout(), c.Engine, limit, a.debug || a.cfg.Debug)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "fragments used as context, 1-20 (default from config)")
	return cmd
}
