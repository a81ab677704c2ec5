package convert

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlConverter renders HTML to markdown text via the general
// document-to-text converter path.
type htmlConverter struct{}

func (htmlConverter) Convert(data []byte) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert: html to markdown: %w", err)
	}
	return markdown, nil
}
