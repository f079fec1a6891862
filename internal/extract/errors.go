package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeLimitExceeded is returned before any parsing when the payload is larger
	// than the configured maximum file size.
	ErrSizeLimitExceeded = errors.New("file exceeds size limit")
	// ErrEmptyResult is returned when a document parsed but yielded no text.
	ErrEmptyResult = errors.New("no text extracted")
	// ErrUnsupportedFormat is returned for files outside the recognised formats.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// ExtractionError reports a parser failure for a specific format.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
