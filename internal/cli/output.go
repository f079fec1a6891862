// Package cli renders results for the kura command line and runs the
// interactive chat loop.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen is the number of characters of a fragment shown in text output.
const snippetLen = 200

// ParseFormat maps a --format value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes retrieval results to w in the given format.
// Unknown formats fall back to text.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, result *models.SimilarFragment) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", rank, result.Score)
	fmt.Fprintf(w, "Document: %s  Fragment: %s\n", result.DocumentID, result.FragmentID)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.OneLine(result.Content), snippetLen))
}

// WriteAnswer writes a generated answer followed by its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	if len(answer.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nSources:\n")
	for i, s := range answer.Sources {
		fmt.Fprintf(w, "  [%d] %.4f  %s\n", i+1, s.Score, utils.Truncate(utils.OneLine(s.Content), 80))
	}
	return nil
}

// WriteIngestSummary writes the outcome of both ingestion phases. embed may
// be nil when Phase 2 was skipped.
func WriteIngestSummary(w io.Writer, ingest *indexer.IngestReport, embed *indexer.EmbedReport) {
	if ingest != nil {
		for _, f := range ingest.Files {
			if f.Status == indexer.StatusFailed {
				fmt.Fprintf(w, "failed: %s: %v\n", f.Path, f.Err)
			}
		}
		fmt.Fprintf(w, "\nFiles:      %d\n", len(ingest.Files))
		fmt.Fprintf(w, "Stored:     %d (%d without text)\n", ingest.Stored+ingest.NoText, ingest.NoText)
		fmt.Fprintf(w, "Skipped:    %d already stored, %d too large\n", ingest.SkippedExists, ingest.SkippedTooLarge)
		fmt.Fprintf(w, "Failed:     %d\n", ingest.Failed)
		fmt.Fprintf(w, "Fragments:  %d\n", ingest.Fragments)
	}
	if embed != nil {
		fmt.Fprintf(w, "Embedded:   %d of %d pending in %d batches", embed.Embedded, embed.Pending, embed.Batches)
		if embed.Unembeddable > 0 {
			fmt.Fprintf(w, " (%d could not be embedded)", embed.Unembeddable)
		}
		fmt.Fprintln(w)
	}
}

// WriteStatus writes a store summary.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "backend:            %s\n", status.Backend)
	if status.Meta != nil {
		fmt.Fprintf(w, "schema_version:     %s\n", status.Meta.Version)
		fmt.Fprintf(w, "embedding_model:    %s\n", status.Meta.EmbeddingModel)
	}
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	fmt.Fprintf(w, "fragments:          %d\n", status.Fragments)
	fmt.Fprintf(w, "pending_embeddings: %d\n", status.PendingEmbeddings)
	if status.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", status.DiskUsageBytes)
	}
	return nil
}

// WriteDocuments writes one line per document.
func WriteDocuments(w io.Writer, docs []*models.Document, total int64, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.Document{}
		}
		return writeJSON(w, map[string]interface{}{"documents": docs, "total": total})
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %-5s %10d  %s  %s\n",
			d.ID, d.Format, d.Size, d.CreatedAt.Format("2006-01-02 15:04"), d.FilePath)
	}
	fmt.Fprintf(w, "\n%d of %d documents\n", len(docs), total)
	return nil
}
