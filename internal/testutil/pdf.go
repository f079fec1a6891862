// Package testutil builds document fixtures for tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// BrokenPDFPage is a content stream whose Tj operator has no operand. The
// parser fails on that page while the rest of the document stays readable.
const BrokenPDFPage = "BT /F1 12 Tf 72 720 Td Tj ET"

// MinimalPDF returns a structurally valid PDF with pageCount pages and no
// content streams, so no page yields any text.
func MinimalPDF(pageCount int) []byte {
	objs := []string{"<< /Type /Catalog /Pages 2 0 R >>"}
	kids := make([]string, pageCount)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pageCount))
	for i := 0; i < pageCount; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	return writePDF(objs)
}

// TextPDF returns a PDF with one page per entry, each showing its text in
// Helvetica with a single Tj operator.
func TextPDF(pages ...string) []byte {
	streams := make([]string, len(pages))
	for i, p := range pages {
		streams[i] = PDFTextStream(p)
	}
	return PDFWithStreams(streams...)
}

// PDFTextStream returns a content stream that shows text with font /F1.
func PDFTextStream(text string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", r.Replace(text))
}

// PDFWithStreams returns a PDF with one page per raw content stream. Every
// page shares a Helvetica font resource named /F1.
func PDFWithStreams(streams ...string) []byte {
	// 1 catalog, 2 page tree, 3 font, then a page and its content per entry.
	kids := make([]string, len(streams))
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(streams)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, s := range streams {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s),
		)
	}
	return writePDF(objs)
}

func writePDF(objs []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
