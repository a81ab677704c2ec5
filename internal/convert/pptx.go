package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxConverter concatenates a presentation's text slide-by-slide,
// paragraph-by-paragraph, per spec.md §4.4 step 2. No third-party pptx
// library is present anywhere in the retrieval pack, so this reads the
// OOXML zip/XML container directly with the standard library (see
// DESIGN.md for the justification).
type pptxConverter struct{}

var slidePathPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (pptxConverter) Convert(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("convert: open pptx: %w", err)
	}

	type slide struct {
		index int
		text  string
	}
	var slides []slide

	for _, f := range zr.File {
		m := slidePathPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("convert: open %s: %w", f.Name, err)
		}
		text, err := extractSlideText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("convert: parse %s: %w", f.Name, err)
		}
		slides = append(slides, slide{index: idx, text: text})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].index < slides[j].index })

	var out strings.Builder
	for _, s := range slides {
		if s.text == "" {
			continue
		}
		out.WriteString(s.text)
		out.WriteString("\n\n")
	}
	return strings.TrimSpace(out.String()), nil
}

// slideXML models just enough of the DrawingML slide schema to walk
// paragraphs (a:p) and their text runs (a:t) in document order.
type slideXML struct {
	Paragraphs []struct {
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"cSld>spTree>sp>txBody>p"`
}

func extractSlideText(r io.Reader) (string, error) {
	var doc slideXML
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return "", err
	}

	var paragraphs []string
	for _, p := range doc.Paragraphs {
		var runs []string
		for _, run := range p.Runs {
			if run.Text != "" {
				runs = append(runs, run.Text)
			}
		}
		if len(runs) > 0 {
			paragraphs = append(paragraphs, strings.Join(runs, ""))
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
