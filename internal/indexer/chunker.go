// Package indexer turns source files into stored, embedded fragments.
package indexer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target fragment length in characters.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is the overlap budget in characters.
	DefaultChunkOverlap = 100

	minSentenceLength = 5
	minChunkLength    = 10
)

// ErrChunkingFailed is returned for an unusable chunker configuration.
var ErrChunkingFailed = errors.New("chunking failed")

// Chunk is one fragment of text. Overlap is the leading text repeated from the
// end of the previous chunk; it is empty for the first chunk.
type Chunk struct {
	Text    string
	Overlap string
}

// Core returns the chunk text without its overlap prefix.
func (c Chunk) Core() string {
	if c.Overlap == "" {
		return c.Text
	}
	return strings.TrimPrefix(c.Text, c.Overlap+" ")
}

// Chunker packs sentences into fragments bounded by a target size, repeating
// whole trailing sentences of each fragment at the start of the next.
type Chunker struct {
	targetSize int
	overlap    int
}

// NewChunker creates a chunker. Sizes are in characters.
func NewChunker(targetSize, overlap int) (*Chunker, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be positive, got %d", ErrChunkingFailed, targetSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrChunkingFailed, overlap)
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}, nil
}

// Chunk splits text into ordered fragments. Empty input yields no fragments.
// A sentence is never split, so a fragment may exceed the target size by up to
// one sentence plus the overlap.
func (c *Chunker) Chunk(text string) []Chunk {
	sentences := SplitSentences(text)
	var (
		chunks  []Chunk
		cur     strings.Builder
		curLen  int
		overlap string
	)
	for i, s := range sentences {
		sLen := utf8.RuneCountInString(s)
		if curLen > 0 && curLen+sLen+1 > c.targetSize {
			if t := strings.TrimSpace(cur.String()); utf8.RuneCountInString(t) > minChunkLength {
				chunks = append(chunks, Chunk{Text: t, Overlap: overlap})
			}
			overlap = c.overlapPrefix(len(chunks), sentences[:i])
			cur.Reset()
			cur.WriteString(overlap)
			curLen = utf8.RuneCountInString(overlap)
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(s)
		curLen += sLen
	}
	if t := strings.TrimSpace(cur.String()); utf8.RuneCountInString(t) > minChunkLength {
		chunks = append(chunks, Chunk{Text: t, Overlap: overlap})
	}
	return chunks
}

// overlapPrefix walks back from the last consumed sentence and keeps whole
// sentences while they fit the overlap budget.
func (c *Chunker) overlapPrefix(emitted int, consumed []string) string {
	if emitted == 0 || c.overlap == 0 {
		return ""
	}
	var parts []string
	used := 0
	for i := len(consumed) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(consumed[i]) + 1
		if used+n > c.overlap {
			break
		}
		parts = append(parts, consumed[i])
		used += n
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, " ")
}

// Texts returns the fragment strings of chunks.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}

// SplitSentences scans text line by line. A '.', '!' or '?' ends a sentence when
// followed by whitespace, an uppercase letter or the end of the line. Sentences
// of five characters or fewer are dropped. Text left over at the end of a line
// carries into the next line.
func SplitSentences(text string) []string {
	var (
		sentences []string
		cur       strings.Builder
	)
	emit := func() {
		if t := strings.TrimSpace(cur.String()); utf8.RuneCountInString(t) > minSentenceLength {
			sentences = append(sentences, t)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimSpace(line))
		if len(runes) == 0 {
			continue
		}
		for i, r := range runes {
			cur.WriteRune(r)
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) || unicode.IsUpper(runes[i+1]) {
				emit()
			}
		}
		if strings.TrimSpace(cur.String()) != "" {
			cur.WriteByte(' ')
		}
	}
	emit()
	return sentences
}
