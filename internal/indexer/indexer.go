package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/extract"
	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/storage"
)

const (
	// DefaultBatchSize is the number of fragments embedded per backend call.
	DefaultBatchSize = 50
	// DefaultBatchDelay is the pause between embedding batches.
	DefaultBatchDelay = 100 * time.Millisecond
)

// ErrCountMismatch is returned when the embedding backend returns a different
// number of vectors than it was given texts. Backends report the same error.
var ErrCountMismatch = embedding.ErrCountMismatch

// Status is the outcome of ingesting one file.
type Status string

const (
	StatusStored          Status = "stored"
	StatusNoText          Status = "no_text"
	StatusSkippedExists   Status = "skipped_exists"
	StatusSkippedTooLarge Status = "skipped_too_large"
	StatusFailed          Status = "failed"
)

// FileResult describes what happened to one input file.
type FileResult struct {
	Path       string
	Status     Status
	DocumentID string
	Fragments  int
	Err        error
}

// IngestReport summarises Phase 1.
type IngestReport struct {
	Files           []FileResult
	Stored          int
	NoText          int
	SkippedExists   int
	SkippedTooLarge int
	Failed          int
	Fragments       int
}

func (r *IngestReport) add(res FileResult) {
	r.Files = append(r.Files, res)
	r.Fragments += res.Fragments
	switch res.Status {
	case StatusStored:
		r.Stored++
	case StatusNoText:
		r.NoText++
	case StatusSkippedExists:
		r.SkippedExists++
	case StatusSkippedTooLarge:
		r.SkippedTooLarge++
	case StatusFailed:
		r.Failed++
	}
}

// EmbedReport summarises Phase 2.
type EmbedReport struct {
	// Pending is the number of fragments without embeddings when the phase started.
	Pending  int64
	Embedded int
	// Unembeddable counts fragments the backend returned an empty vector for.
	Unembeddable int
	Batches      int
}

// Phase names reported through ProgressFunc.
const (
	PhaseIngest = "ingest"
	PhaseEmbed  = "embed"
)

// Progress is reported after each file in Phase 1 and each batch in Phase 2.
type Progress struct {
	Phase string
	Done  int
	Total int
	Path  string
}

// ProgressFunc receives progress updates. It is called from the indexing goroutine.
type ProgressFunc func(Progress)

// Config holds orchestration settings.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Indexer drives ingestion: Phase 1 stores each file and its fragments, Phase
// 2 embeds every stored fragment that has no vector yet.
type Indexer struct {
	store     storage.Storage
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	cfg       Config
	logger    *zap.Logger
	progress  ProgressFunc
	sleep     func(ctx context.Context, d time.Duration) error

	// mu serializes store writes and embedding runs. The watcher and the
	// HTTP server share one Indexer.
	mu sync.Mutex
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(idx *Indexer) { idx.progress = fn }
}

// WithSleeper replaces the pause between embedding batches.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(idx *Indexer) { idx.sleep = fn }
}

// NewIndexer creates an indexer. Zero config values get defaults.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	chunker *Chunker,
	cfg Config,
	opts ...Option,
) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		cfg:       cfg,
		logger:    zap.NewNop(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// Prepare initializes the store and pins it to the embedder's model.
func (idx *Indexer) Prepare(ctx context.Context) error {
	if err := idx.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	if err := idx.store.VerifyOrSetModel(ctx, idx.embedder.ModelName()); err != nil {
		return fmt.Errorf("verify embedding model: %w", err)
	}
	return nil
}

// Run prepares the store, ingests paths and then embeds all pending fragments.
func (idx *Indexer) Run(ctx context.Context, paths []string) (*IngestReport, *EmbedReport, error) {
	if err := idx.Prepare(ctx); err != nil {
		return nil, nil, err
	}
	ingest, err := idx.IngestPaths(ctx, paths)
	if err != nil {
		return ingest, nil, err
	}
	embed, err := idx.EmbedPending(ctx)
	return ingest, embed, err
}

// IngestPaths runs Phase 1 over paths one file at a time. Per-file failures
// are recorded in the report and do not stop the run; only cancellation does.
func (idx *Indexer) IngestPaths(ctx context.Context, paths []string) (*IngestReport, error) {
	return idx.ingestEach(ctx, paths, idx.IngestFile)
}

// ReingestPaths is IngestPaths with Reingest applied to every path. It backs
// the operator's forced re-ingest.
func (idx *Indexer) ReingestPaths(ctx context.Context, paths []string) (*IngestReport, error) {
	return idx.ingestEach(ctx, paths, idx.Reingest)
}

func (idx *Indexer) ingestEach(ctx context.Context, paths []string, fn func(context.Context, string) FileResult) (*IngestReport, error) {
	report := &IngestReport{}
	idx.logger.Info("ingest started", zap.Int("files", len(paths)))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(fn(ctx, path))
		idx.report(Progress{Phase: PhaseIngest, Done: i + 1, Total: len(paths), Path: path})
	}
	idx.logger.Info("ingest finished",
		zap.Int("stored", report.Stored),
		zap.Int("no_text", report.NoText),
		zap.Int("skipped_exists", report.SkippedExists),
		zap.Int("skipped_too_large", report.SkippedTooLarge),
		zap.Int("failed", report.Failed),
		zap.Int("fragments", report.Fragments))
	return report, nil
}

// IngestFile runs Phase 1 for a single file: existence check, size check,
// raw-bytes persist, extraction, chunking and fragment persist. The document
// record is written before extraction, so a file whose text cannot be
// extracted still appears in the store.
func (idx *Indexer) IngestFile(ctx context.Context, path string) FileResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.ingestFile(ctx, path)
}

func (idx *Indexer) ingestFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}
	fail := func(err error) FileResult {
		res.Status = StatusFailed
		res.Err = err
		idx.logger.Warn("ingest failed", zap.String("path", res.Path), zap.Error(err))
		return res
	}

	canonical, err := fileid.CanonicalPath(path)
	if err != nil {
		return fail(err)
	}
	res.Path = canonical

	exists, err := idx.store.DocumentExists(ctx, canonical)
	if err != nil {
		return fail(err)
	}
	if exists {
		res.Status = StatusSkippedExists
		idx.logger.Debug("document already stored", zap.String("path", canonical))
		return res
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return fail(fmt.Errorf("stat file: %w", err))
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("not a regular file: %s", canonical))
	}
	if limit := idx.extractor.Config().MaxFileSize; info.Size() > limit {
		res.Status = StatusSkippedTooLarge
		idx.logger.Warn("skipping large file",
			zap.String("path", canonical),
			zap.Int64("size", info.Size()),
			zap.Int64("limit", limit))
		return res
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		return fail(fmt.Errorf("read file: %w", err))
	}
	docID, err := idx.store.StoreDocument(ctx, canonical, data)
	if errors.Is(err, storage.ErrDocumentExists) {
		res.Status = StatusSkippedExists
		return res
	}
	if err != nil {
		return fail(err)
	}
	res.DocumentID = docID
	idx.logger.Debug("document stored", zap.String("path", canonical), zap.String("id", docID))

	text, err := idx.extractor.Extract(canonical, data)
	if errors.Is(err, extract.ErrEmptyResult) {
		res.Status = StatusNoText
		idx.logger.Warn("no text extracted", zap.String("path", canonical))
		return res
	}
	if err != nil {
		return fail(err)
	}

	chunks := idx.chunker.Chunk(text)
	if len(chunks) == 0 {
		res.Status = StatusNoText
		idx.logger.Warn("no fragments produced", zap.String("path", canonical))
		return res
	}

	for order, c := range chunks {
		if _, err := idx.store.StoreTextFragment(ctx, docID, order, c.Text); err != nil {
			res.Fragments = order
			return fail(fmt.Errorf("store fragment %d: %w", order, err))
		}
	}
	res.Status = StatusStored
	res.Fragments = len(chunks)
	idx.logger.Debug("fragments stored", zap.String("path", canonical), zap.Int("fragments", len(chunks)))
	return res
}

// Reingest removes any stored document for path and ingests it again. Only
// operator actions call it; the pipeline itself never deletes.
func (idx *Indexer) Reingest(ctx context.Context, path string) FileResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.deleteByPath(ctx, path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		idx.logger.Warn("delete before reingest failed", zap.String("path", path), zap.Error(err))
		return FileResult{Path: path, Status: StatusFailed, Err: err}
	}
	return idx.ingestFile(ctx, path)
}

// DeleteByPath removes the document stored for path with its fragments and
// returns its ID.
func (idx *Indexer) DeleteByPath(ctx context.Context, path string) (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteByPath(ctx, path)
}

func (idx *Indexer) deleteByPath(ctx context.Context, path string) (string, error) {
	canonical, err := fileid.CanonicalPath(path)
	if err != nil {
		return "", err
	}
	doc, err := idx.store.FindDocumentByPath(ctx, canonical)
	if err != nil {
		return "", err
	}
	if err := idx.store.DeleteDocument(ctx, doc.ID); err != nil {
		return "", err
	}
	idx.logger.Debug("document deleted", zap.String("path", canonical), zap.String("id", doc.ID))
	return doc.ID, nil
}

// EmbedPending runs Phase 2: fetch a batch of fragments without embeddings in
// (document, order) order, embed the whole batch with one backend call, and
// persist every non-empty vector, until no fragments remain.
//
// A fragment that comes back with an empty vector stays unembedded and is
// excluded from later fetches of this run. A vector count that differs from
// the batch size aborts the phase with ErrCountMismatch.
//
// Concurrent calls run one after another, so a fragment is never sent to
// the backend twice.
func (idx *Indexer) EmbedPending(ctx context.Context) (*EmbedReport, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	pending, err := idx.store.CountFragmentsWithoutEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	report := &EmbedReport{Pending: pending}
	if pending == 0 {
		idx.logger.Info("no fragments require embeddings")
		return report, nil
	}
	idx.logger.Info("embedding started", zap.Int64("pending", pending), zap.Int("batch_size", idx.cfg.BatchSize))

	unembeddable := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rows, err := idx.store.GetFragmentsWithoutEmbeddings(ctx, idx.cfg.BatchSize+len(unembeddable))
		if err != nil {
			return report, err
		}
		batch := rows[:0]
		for _, r := range rows {
			if !unembeddable[r.ID] && len(batch) < idx.cfg.BatchSize {
				batch = append(batch, r)
			}
		}
		if len(batch) == 0 {
			break
		}
		if report.Batches > 0 {
			if err := idx.sleep(ctx, idx.cfg.BatchDelay); err != nil {
				return report, err
			}
		}

		texts := make([]string, len(batch))
		for i, f := range batch {
			texts[i] = f.Content
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return report, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return report, fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(batch), len(vectors))
		}

		for i, f := range batch {
			if len(vectors[i]) == 0 {
				unembeddable[f.ID] = true
				report.Unembeddable++
				idx.logger.Warn("skipping empty embedding", zap.String("fragment_id", f.ID))
				continue
			}
			if err := idx.store.UpdateFragmentEmbedding(ctx, f.ID, vectors[i]); err != nil {
				return report, fmt.Errorf("update embedding for fragment %s: %w", f.ID, err)
			}
			report.Embedded++
		}
		report.Batches++
		idx.logger.Debug("embedding batch persisted",
			zap.Int("batch", report.Batches),
			zap.Int("embedded", report.Embedded),
			zap.Int64("pending", pending))
		idx.report(Progress{Phase: PhaseEmbed, Done: report.Embedded + report.Unembeddable, Total: int(pending)})
	}

	idx.logger.Info("embedding finished",
		zap.Int("embedded", report.Embedded),
		zap.Int("unembeddable", report.Unembeddable),
		zap.Int("batches", report.Batches))
	return report, nil
}

func (idx *Indexer) report(p Progress) {
	if idx.progress != nil {
		idx.progress(p)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
