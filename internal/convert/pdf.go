package convert

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pdfConverter extracts page text in order via the general
// document-to-text converter path.
type pdfConverter struct{}

func (pdfConverter) Convert(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("convert: open pdf: %w", err)
	}

	var out bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("convert: read pdf page %d: %w", i, err)
		}
		out.WriteString(text)
		out.WriteByte('\n')
	}
	return out.String(), nil
}
