package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF reads pages in ascending order until MaxTextLength characters are
// collected. Pages whose text cannot be read are skipped.
func (e *Extractor) extractPDF(content []byte) (text string, err error) {
	// The parser panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	limit := e.cfg.MaxTextLength
	var buf strings.Builder
	collected := 0
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if collected >= limit {
			break
		}
		pageText, err := readPDFPage(r, i)
		if err != nil {
			e.logger.Warn("skipping unreadable PDF page", zap.Int("page", i), zap.Error(err))
			continue
		}
		n := runeLen(pageText) + 1
		if collected+n <= limit {
			buf.WriteString(pageText)
			buf.WriteByte('\n')
			collected += n
			continue
		}
		if remaining := limit - collected; remaining > 0 {
			buf.WriteString(truncateRunes(pageText, remaining))
		}
		break
	}
	return buf.String(), nil
}

func readPDFPage(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d: %v", num, rec)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", errors.New("page object missing")
	}
	return page.GetPlainText(nil)
}
