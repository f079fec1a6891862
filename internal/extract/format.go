package extract

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format is a recognised document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatDocx Format = "docx"
	FormatPptx Format = "pptx"
	FormatXlsx Format = "xlsx"
)

// formatExtensions lists the canonical extensions each format answers to.
var formatExtensions = map[Format][]string{
	FormatPDF:  {"pdf"},
	FormatText: {"txt", "text"},
	FormatHTML: {"html", "htm"},
	FormatDocx: {"docx"},
	FormatPptx: {"pptx"},
	FormatXlsx: {"xlsx"},
}

var extensionIndex = func() map[string]Format {
	idx := make(map[string]Format)
	for f, exts := range formatExtensions {
		for _, ext := range exts {
			idx[ext] = f
		}
	}
	return idx
}()

// Formats returns every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatPDF, FormatText, FormatHTML, FormatDocx, FormatPptx, FormatXlsx}
}

// Extensions returns the extensions recognised for f, without leading dots.
func (f Format) Extensions() []string {
	return append([]string(nil), formatExtensions[f]...)
}

func (f Format) String() string {
	return string(f)
}

// FormatFromExtension maps an extension (with or without the leading dot, any case)
// to its format.
func FormatFromExtension(ext string) (Format, bool) {
	f, ok := extensionIndex[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

// FormatFromPath classifies a file by its extension.
func FormatFromPath(path string) (Format, bool) {
	return FormatFromExtension(filepath.Ext(path))
}

// SupportedExtensions returns all recognised extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionIndex))
	for ext := range extensionIndex {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
