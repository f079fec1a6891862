package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/storage"
)

func newDocumentsCmd(a *app) *cobra.Command {
	var offset, limit int
	var format string
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List stored documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}
			if offset < 0 || limit < 1 {
				return fmt.Errorf("offset must be >= 0 and limit >= 1")
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
			docs, err := store.ListDocuments(ctx, offset, limit)
			if err != nil {
				return err
			}
			total, err := store.CountDocuments(ctx)
			if err != nil {
				return err
			}
			return cli.WriteDocuments(cmd.OutOrStdout(), docs, total, out)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "documents to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "documents to show")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path|id>...",
		Short: "Delete stored documents with their fragments and embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := initializeComponents(ctx, a.cfg, a.logger, componentOptions{existingStore: true})
			if err != nil {
				return err
			}
			defer c.Close()
			var failed int
			for _, arg := range args {
				id, err := deleteDocument(cmd, c.Storage, c.Indexer, arg)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", arg, id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(args))
			}
			return nil
		},
	}
}

// deleteDocument treats arg as a document ID when it is one, and as a file
// path otherwise.
func deleteDocument(cmd *cobra.Command, store storage.Storage, idx *indexer.Indexer, arg string) (string, error) {
	ctx := cmd.Context()
	if fileid.IsID(arg) {
		if _, err := store.GetDocument(ctx, arg); err == nil {
			return arg, store.DeleteDocument(ctx, arg)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	return idx.DeleteByPath(ctx, arg)
}
