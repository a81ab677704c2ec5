// Package convert turns a file's raw bytes into plain text by an
// extension-dispatched strategy (spec.md §4.4 step 2). The converter
// itself is an out-of-scope external collaborator; this package
// supplies the concrete strategies the Ingestor needs to run.
package convert

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Options parameterizes the format-specific strategies.
type Options struct {
	JSONSelector string
	CSVSeparator rune
}

// Converter turns a file's contents into plain text.
type Converter interface {
	Convert(data []byte) (string, error)
}

// ForExtension returns the Converter strategy dispatched on ext (with
// or without a leading dot), per spec.md §4.4's extension-dispatch
// rule: structured text read verbatim, JSON projected through a
// selector, tabular serialized as records, presentations concatenated
// slide-by-slide, everything else via the general document converter.
func ForExtension(ext string, opts Options) Converter {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	switch ext {
	case "json":
		return jsonConverter{selector: opts.JSONSelector}
	case "csv":
		sep := opts.CSVSeparator
		if sep == 0 {
			sep = ','
		}
		return csvConverter{separator: sep}
	case "xlsx", "xls":
		return xlsxConverter{}
	case "pptx":
		return pptxConverter{}
	case "pdf":
		return pdfConverter{}
	case "docx":
		return docxConverter{}
	case "html", "htm":
		return htmlConverter{}
	case "txt", "md", "markdown", "rst", "log", "yaml", "yml":
		return verbatimConverter{}
	default:
		return verbatimConverter{}
	}
}

// AllowListed reports whether ext is among the comma-separated file
// types the ingest configuration allows.
func AllowListed(ext string, allowList []string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range allowList {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}

// ExtOf returns the lowercase extension of path without its dot.
func ExtOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// verbatimConverter passes structured text formats through unchanged.
type verbatimConverter struct{}

func (verbatimConverter) Convert(data []byte) (string, error) {
	return string(data), nil
}

// jsonConverter projects JSON through a gjson selector expression and
// re-serializes the result as text. An empty selector passes the
// document through unchanged.
type jsonConverter struct {
	selector string
}

func (c jsonConverter) Convert(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("convert: invalid json")
	}
	if c.selector == "" {
		return string(data), nil
	}
	result := gjson.GetBytes(data, c.selector)
	if !result.Exists() {
		return "", nil
	}
	if result.IsArray() || result.IsObject() {
		return result.Raw, nil
	}
	return result.String(), nil
}

// csvConverter serializes rows as a record list, one line per row with
// fields joined by " | ", matching how the tabular strategy renders
// xlsx sheets for consistency across tabular formats.
type csvConverter struct {
	separator rune
}

func (c csvConverter) Convert(data []byte) (string, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = c.separator
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("convert: read csv: %w", err)
	}
	return renderRecords(records), nil
}

func renderRecords(records [][]string) string {
	var b strings.Builder
	for _, row := range records {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}
