package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hyperjump/kura/internal/cli"
	"github.com/hyperjump/kura/internal/indexer"
)

type ingestOptions struct {
	model     string
	provider  string
	recursive bool
	exclude   []string
	skipEmbed bool
	batchSize int
	force     bool
	noBar     bool
}

func newIngestCmd(a *app) *cobra.Command {
	o := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Store files and their fragments, then embed pending fragments",
		Long: `Ingest stores each file's raw bytes and text fragments (phase 1) and then
embeds every fragment that has no vector yet (phase 2). Directories are
scanned for supported files; files are taken as given. Paths already in the
store are skipped unless --force is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, a, o, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "embedding model name (overrides config)")
	f.StringVar(&o.provider, "provider", "", "embedding provider: mock, openai or onnx (overrides config)")
	f.BoolVarP(&o.recursive, "recursive", "r", false, "descend into subdirectories")
	f.StringSliceVar(&o.exclude, "exclude", nil, "glob patterns to skip, relative to each directory (repeatable)")
	f.BoolVar(&o.skipEmbed, "skip-embed", false, "run phase 1 only")
	f.IntVar(&o.batchSize, "batch-size", 0, "fragments per embedding request (overrides config)")
	f.BoolVar(&o.force, "force", false, "delete and re-ingest paths that are already stored")
	f.BoolVar(&o.noBar, "no-progress", false, "disable progress bars")
	return cmd
}

func runIngest(cmd *cobra.Command, a *app, o *ingestOptions, args []string) error {
	cfg := a.cfg
	if o.model != "" {
		cfg.Embedding.Model = o.model
	}
	if o.provider != "" {
		cfg.Embedding.Provider = o.provider
	}
	if o.batchSize > 0 {
		cfg.Ingest.BatchSize = o.batchSize
	}
	recursive := cfg.Ingest.Recursive || o.recursive
	exclude := append(append([]string(nil), cfg.Ingest.Exclude...), o.exclude...)

	files, err := collectFiles(args, indexer.ScanOptions{Recursive: recursive, Exclude: exclude})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No supported files found.")
		return nil
	}

	var opts componentOptions
	if !o.noBar {
		opts.indexerOpts = append(opts.indexerOpts, indexer.WithProgress(newProgressBars().update))
	}
	ctx := cmd.Context()
	c, err := initializeComponents(ctx, cfg, a.logger, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Indexer.Prepare(ctx); err != nil {
		return err
	}
	ingestFn := c.Indexer.IngestPaths
	if o.force {
		ingestFn = c.Indexer.ReingestPaths
	}
	ingest, err := ingestFn(ctx, files)
	if err != nil {
		cli.WriteIngestSummary(cmd.OutOrStdout(), ingest, nil)
		return err
	}
	var embed *indexer.EmbedReport
	if !o.skipEmbed {
		embed, err = c.Indexer.EmbedPending(ctx)
	}
	cli.WriteIngestSummary(cmd.OutOrStdout(), ingest, embed)
	return err
}

// collectFiles expands directories to the supported files inside them. Other
// paths are passed through so that missing or unreadable files show up as
// failures in the report.
func collectFiles(paths []string, opts indexer.ScanOptions) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := indexer.ScanDirectory(p, opts)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// progressBars renders one bar per phase on stderr.
type progressBars struct {
	phase string
	bar   *progressbar.ProgressBar
}

func newProgressBars() *progressBars {
	return &progressBars{}
}

func (p *progressBars) update(pr indexer.Progress) {
	if p.phase != pr.Phase || p.bar == nil {
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		p.phase = pr.Phase
		p.bar = progressbar.NewOptions(pr.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(phaseDescription(pr.Phase)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}
	_ = p.bar.Set(pr.Done)
}

func phaseDescription(phase string) string {
	if phase == indexer.PhaseEmbed {
		return "[cyan]Embedding[reset]"
	}
	return "[cyan]Ingesting[reset]"
}
