// Package extract converts document payloads into normalised plain text.
package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize is the largest payload accepted for extraction (50 MiB).
	DefaultMaxFileSize int64 = 50 << 20
	// DefaultMaxTextLength is the number of characters kept from a document.
	DefaultMaxTextLength = 5_000_000
)

// Config bounds the work an Extractor does per document.
type Config struct {
	// MaxFileSize is checked before any parsing.
	MaxFileSize int64
	// MaxTextLength is a character count, not a byte count.
	MaxTextLength int
	// TempDir holds short-lived copies of payloads that must be read from disk.
	// Empty means the OS temp directory.
	TempDir string
}

// DefaultConfig returns the default extraction limits.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:   DefaultMaxFileSize,
		MaxTextLength: DefaultMaxTextLength,
	}
}

// Extractor extracts plain text from document payloads.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for skipped pages and similar recoverable events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an Extractor. Zero limits in cfg fall back to the defaults.
func NewExtractor(cfg Config, opts ...Option) *Extractor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	e := &Extractor{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective limits.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract classifies path by extension and extracts text from content.
func (e *Extractor) Extract(path string, content []byte) (string, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return e.ExtractFormat(format, content)
}

// ExtractFormat extracts text from content using the strategy for format.
// The result is normalised and truncated to MaxTextLength characters.
// It fails with ErrSizeLimitExceeded before parsing when content is too large,
// with an *ExtractionError when the parser fails, and with ErrEmptyResult when
// nothing is left after normalisation.
func (e *Extractor) ExtractFormat(format Format, content []byte) (string, error) {
	if size := int64(len(content)); size > e.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrSizeLimitExceeded, size, e.cfg.MaxFileSize)
	}

	var (
		raw string
		err error
	)
	switch format {
	case FormatPDF:
		raw, err = e.extractPDF(content)
	case FormatText:
		raw = decodeText(content)
	case FormatHTML:
		raw, err = extractHTML(content)
	case FormatDocx:
		raw, err = extractDOCX(content)
	case FormatPptx:
		raw, err = extractPPTX(content)
	case FormatXlsx:
		raw, err = e.extractXLSX(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", &ExtractionError{Format: format, Err: err}
	}

	text := truncateRunes(Normalize(raw), e.cfg.MaxTextLength)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", format, ErrEmptyResult)
	}
	return text, nil
}
