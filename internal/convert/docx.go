package convert

import (
	"bytes"
	"fmt"

	"github.com/nguyenthenguyen/docx"
)

// docxConverter reads a Word document's body text via the general
// document-to-text converter path.
type docxConverter struct{}

func (docxConverter) Convert(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("convert: open docx: %w", err)
	}
	defer r.Close()

	return r.Editable().GetContent(), nil
}
