package indexer

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustChunker(t *testing.T, target, overlap int) *Chunker {
	t.Helper()
	c, err := NewChunker(target, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"basic", "First sentence here. Second sentence here.", []string{"First sentence here.", "Second sentence here."}},
		{"uppercase after mark", "Hello world!How are you?", []string{"Hello world!", "How are you?"}},
		{"decimal number", "Version 1.5 is out now.", []string{"Version 1.5 is out now."}},
		{"short sentences dropped", "Ok. Fine. This one is long enough.", []string{"This one is long enough."}},
		{"carries across lines", "This continues\nonto the next line.", []string{"This continues onto the next line."}},
		{"trailing text kept", "Complete sentence. And a trailing clause", []string{"Complete sentence.", "And a trailing clause"}},
		{"paragraphs", "Paragraph one ends.\n\nParagraph two ends.", []string{"Paragraph one ends.", "Paragraph two ends."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.in)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewChunker_invalidConfig(t *testing.T) {
	for _, tc := range []struct{ target, overlap int }{{0, 0}, {-1, 10}, {100, -1}} {
		if _, err := NewChunker(tc.target, tc.overlap); !errors.Is(err, ErrChunkingFailed) {
			t.Errorf("NewChunker(%d, %d) err = %v, want ErrChunkingFailed", tc.target, tc.overlap, err)
		}
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c := mustChunker(t, DefaultChunkSize, DefaultChunkOverlap)
	for _, in := range []string{"", "   \n\t  ", "Tiny."} {
		if chunks := c.Chunk(in); len(chunks) != 0 {
			t.Errorf("Chunk(%q) = %v, want none", in, chunks)
		}
	}
}

func TestChunker_oneFragmentPerSentence(t *testing.T) {
	c := mustChunker(t, 20, 5)
	chunks := c.Chunk("First one here. Second one here. Third one here.")
	want := []string{"First one here.", "Second one here.", "Third one here."}
	if got := Texts(chunks); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Chunk = %q, want %q", got, want)
	}
	for i, ch := range chunks {
		if ch.Overlap != "" {
			t.Errorf("chunk %d: overlap %q should be empty when no sentence fits the budget", i, ch.Overlap)
		}
	}
}

func TestChunker_overlapIsTrailingSentences(t *testing.T) {
	c := mustChunker(t, 25, 12)
	chunks := c.Chunk("Aaaa aaaa. Bbbb bbbb. Cccc cccc. Dddd dddd.")
	want := []Chunk{
		{Text: "Aaaa aaaa. Bbbb bbbb."},
		{Text: "Bbbb bbbb. Cccc cccc.", Overlap: "Bbbb bbbb."},
		{Text: "Cccc cccc. Dddd dddd.", Overlap: "Cccc cccc."},
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks: %+v", len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %+v, want %+v", i, chunks[i], want[i])
		}
	}
}

func TestChunker_properties(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 12) +
		"A much longer sentence that goes on and on without stopping for quite some time indeed. " +
		"Short end here."
	const target, overlap = 120, 50
	c := mustChunker(t, target, overlap)
	chunks := c.Chunk(text)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var cores []string
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n <= minChunkLength {
			t.Errorf("chunk %d too short: %q", i, ch.Text)
		}
		if utf8.RuneCountInString(ch.Overlap) > overlap {
			t.Errorf("chunk %d overlap exceeds budget: %q", i, ch.Overlap)
		}
		if i > 0 && ch.Overlap != "" && !strings.HasSuffix(chunks[i-1].Text, ch.Overlap) {
			t.Errorf("chunk %d overlap %q is not a suffix of the previous chunk %q", i, ch.Overlap, chunks[i-1].Text)
		}
		if !strings.HasPrefix(ch.Text, ch.Overlap) {
			t.Errorf("chunk %d does not start with its overlap", i)
		}
		cores = append(cores, ch.Core())
	}
	if got, want := strings.Join(cores, " "), strings.Join(SplitSentences(text), " "); got != want {
		t.Errorf("cores do not reconstruct the sentences:\n got %q\nwant %q", got, want)
	}
}

func TestChunker_longSentenceKeptWhole(t *testing.T) {
	long := "This single sentence is far longer than the configured target size of the chunker."
	c := mustChunker(t, 20, 5)
	chunks := c.Chunk("Opening words here. " + long + " Closing words here.")
	found := 0
	for _, ch := range chunks {
		if strings.Contains(ch.Text, long) {
			found++
		}
	}
	if found != 1 {
		t.Errorf("long sentence appears in %d chunks, want 1: %q", found, Texts(chunks))
	}
}

func TestChunk_CoreWithoutOverlap(t *testing.T) {
	ch := Chunk{Text: "abc def", Overlap: ""}
	if ch.Core() != "abc def" {
		t.Errorf("Core() = %q", ch.Core())
	}
	ch = Chunk{Text: "abc def", Overlap: "abc"}
	if ch.Core() != "def" {
		t.Errorf("Core() = %q", ch.Core())
	}
}
