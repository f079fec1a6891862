package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// excelErrorValues are formula error literals; they carry no text worth indexing.
var excelErrorValues = map[string]bool{
	"#NULL!": true, "#DIV/0!": true, "#VALUE!": true, "#REF!": true, "#NAME?": true,
	"#NUM!": true, "#N/A": true, "#GETTING_DATA": true, "#SPILL!": true, "#CALC!": true,
}

// extractXLSX renders each row as its non-empty cells joined by " | ", sheet by
// sheet in workbook order, with an end-of-sheet marker after every sheet.
func (e *Extractor) extractXLSX(content []byte) (string, error) {
	var text string
	err := e.withTempFile("kura-*.xlsx", content, func(path string) error {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()

		var b strings.Builder
		collected := 0
		for _, sheet := range f.GetSheetList() {
			if collected >= e.cfg.MaxTextLength {
				break
			}
			n, err := writeSheet(&b, f, sheet, e.cfg.MaxTextLength-collected)
			if err != nil {
				return err
			}
			collected += n
			marker := fmt.Sprintf("--- end of sheet %s ---\n", sheet)
			b.WriteString(marker)
			collected += runeLen(marker)
		}
		text = b.String()
		return nil
	})
	return text, err
}

// writeSheet streams the rows of sheet into b until budget characters are written.
func writeSheet(b *strings.Builder, f *excelize.File, sheet string, budget int) (int, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return 0, fmt.Errorf("rows for sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	written := 0
	for rows.Next() && written < budget {
		cols, err := rows.Columns()
		if err != nil {
			return written, fmt.Errorf("read row in sheet %q: %w", sheet, err)
		}
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if c == "" || excelErrorValues[c] {
				continue
			}
			cells = append(cells, c)
		}
		if len(cells) == 0 {
			continue
		}
		line := strings.Join(cells, " | ")
		b.WriteString(line)
		b.WriteByte('\n')
		written += runeLen(line) + 1
	}
	if err := rows.Error(); err != nil {
		return written, fmt.Errorf("iterate sheet %q: %w", sheet, err)
	}
	return written, nil
}

// withTempFile writes content to a temporary file, hands its path to fn and
// removes the file on every return path.
func (e *Extractor) withTempFile(pattern string, content []byte, fn func(path string) error) error {
	tmp, err := os.CreateTemp(e.cfg.TempDir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, werr := tmp.Write(content)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	return fn(path)
}
