// Package chunking splits converted document text into ordered chunks
// using one of the three strategies spec.md §6 names. The splitter
// itself is an out-of-scope external collaborator (text → list of
// strings); this package supplies concrete, swappable implementations
// so the Ingestor is runnable end to end.
package chunking

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ragcorpus/ragd/internal/config"
)

// Splitter turns document text into an ordered list of chunk texts.
type Splitter interface {
	Split(text string) []string
}

// Config parameterizes any Splitter variant.
type Config struct {
	Strategy config.Splitter
	Size     int
	Overlap  int
}

// New returns the Splitter named by cfg.Strategy, defaulting to
// RecursiveCharacterTextSplitter for an unrecognized or empty name.
func New(cfg Config) Splitter {
	size := cfg.Size
	if size <= 0 {
		size = 512
	}
	overlap := cfg.Overlap
	if overlap < 0 {
		overlap = 0
	}

	switch cfg.Strategy {
	case config.SplitterSemantic:
		return &semanticChunker{size: size, overlap: overlap}
	case config.SplitterParagraph:
		return &paragraphChunker{size: size, overlap: overlap}
	default:
		return &recursiveCharacterSplitter{size: size, overlap: overlap}
	}
}

// recursiveCharacterSplitter packs words into fixed-size windows,
// stepping forward by size-overlap words each time. Adapted from the
// teacher's fixed chunking strategy.
type recursiveCharacterSplitter struct {
	size    int
	overlap int
}

func (s *recursiveCharacterSplitter) Split(text string) []string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return nil
	}

	step := s.size - s.overlap
	if step <= 0 {
		step = s.size / 2
	}
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(words); {
		end := i + s.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
		i += step
	}
	return chunks
}

// paragraphChunker groups whole paragraphs (blank-line delimited) until
// the target size is reached, never splitting a paragraph mid-way
// unless it alone exceeds size. Grounded on the teacher's paragraph
// split (`\n\s*\n`) used ahead of its block classification pass.
type paragraphChunker struct {
	size    int
	overlap int
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func (s *paragraphChunker) Split(text string) []string {
	paras := paragraphSplit.Split(strings.TrimSpace(text), -1)

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n\n"))
		current = nil
		currentWords = 0
	}

	for _, para := range paras {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		words := len(strings.Fields(para))

		if words > s.size {
			flush()
			sub := (&recursiveCharacterSplitter{size: s.size, overlap: s.overlap}).Split(para)
			chunks = append(chunks, sub...)
			continue
		}

		if currentWords+words > s.size && currentWords > 0 {
			flush()
		}
		current = append(current, para)
		currentWords += words
	}
	flush()

	if s.overlap > 0 {
		chunks = addOverlap(chunks, s.overlap)
	}
	return chunks
}

// semanticChunker is a markdown-aware chunker: it keeps code blocks and
// tables atomic, tracks the current section header, and groups
// paragraphs within a section until the target size. Adapted from the
// teacher's chunkSemantic/parseIntoBlocks/groupBlocksIntoChunks.
type semanticChunker struct {
	size    int
	overlap int
}

type semanticBlock struct {
	kind    string // header, paragraph, code, table, list
	content string
	header  string
	level   int
}

var (
	headerPattern    = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")
	tablePattern     = regexp.MustCompile(`(?m)^\|.+\|$`)
	orderedListLine  = regexp.MustCompile(`^\d+\.\s`)
)

func (s *semanticChunker) Split(text string) []string {
	blocks := parseBlocks(strings.TrimSpace(text))
	chunks := groupBlocks(blocks, s.size)
	if s.overlap > 0 {
		chunks = addOverlap(chunks, s.overlap)
	}
	return chunks
}

func parseBlocks(content string) []semanticBlock {
	var blocks []semanticBlock
	currentHeader := ""
	currentLevel := 0

	codeMatches := codeBlockPattern.FindAllStringIndex(content, -1)
	placeholders := make(map[string]string, len(codeMatches))
	processed := content
	for i := len(codeMatches) - 1; i >= 0; i-- {
		m := codeMatches[i]
		placeholder := "___CODE_BLOCK_" + strconv.Itoa(i) + "___"
		placeholders[placeholder] = content[m[0]:m[1]]
		processed = processed[:m[0]] + placeholder + processed[m[1]:]
	}

	for _, para := range paragraphSplit.Split(processed, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if code, ok := placeholders[para]; ok {
			blocks = append(blocks, semanticBlock{kind: "code", content: code, header: currentHeader, level: currentLevel})
			continue
		}
		if m := headerPattern.FindStringSubmatch(para); m != nil {
			currentLevel = len(m[1])
			currentHeader = m[2]
			blocks = append(blocks, semanticBlock{kind: "header", content: para, header: currentHeader, level: currentLevel})
			continue
		}
		if tablePattern.MatchString(para) {
			blocks = append(blocks, semanticBlock{kind: "table", content: para, header: currentHeader, level: currentLevel})
			continue
		}
		if isListBlock(para) {
			blocks = append(blocks, semanticBlock{kind: "list", content: para, header: currentHeader, level: currentLevel})
			continue
		}
		blocks = append(blocks, semanticBlock{kind: "paragraph", content: para, header: currentHeader, level: currentLevel})
	}
	return blocks
}

func isListBlock(content string) bool {
	first := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	return strings.HasPrefix(first, "- ") || strings.HasPrefix(first, "* ") ||
		strings.HasPrefix(first, "+ ") || orderedListLine.MatchString(first)
}

func groupBlocks(blocks []semanticBlock, size int) []string {
	var chunks []string
	var current []semanticBlock
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		var parts []string
		if h := current[0].header; h != "" && current[0].kind != "header" {
			parts = append(parts, "[Section: "+h+"]")
		}
		for _, b := range current {
			parts = append(parts, b.content)
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(parts, "\n\n")))
		current = nil
		currentWords = 0
	}

	for _, block := range blocks {
		words := len(strings.Fields(block.content))
		atomic := block.kind == "code" || block.kind == "table"

		if words > size {
			flush()
			if atomic {
				current = append(current, block)
				flush()
			} else {
				chunks = append(chunks, splitLargeBlock(block, size)...)
			}
			continue
		}

		if currentWords+words > size && currentWords > 0 {
			flush()
		}
		current = append(current, block)
		currentWords += words
	}
	flush()
	return chunks
}

func splitLargeBlock(block semanticBlock, size int) []string {
	sentences := splitSentences(block.content)
	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, " ")
		if block.header != "" {
			content = "[Section: " + block.header + "]\n\n" + content
		}
		chunks = append(chunks, strings.TrimSpace(content))
		current = nil
		currentWords = 0
	}

	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if currentWords+words > size && currentWords > 0 {
			flush()
		}
		current = append(current, sentence)
		currentWords += words
	}
	flush()
	return chunks
}

func addOverlap(chunks []string, overlap int) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	out := make([]string, len(chunks))
	copy(out, chunks)

	for i := 1; i < len(out); i++ {
		prevWords := strings.Fields(chunks[i-1])
		if len(prevWords) == 0 {
			continue
		}
		n := overlap
		if n > len(prevWords) {
			n = len(prevWords)
		}
		overlapText := strings.Join(prevWords[len(prevWords)-n:], " ")
		if strings.HasPrefix(overlapText, "[Section:") {
			continue
		}
		out[i] = "[...] " + overlapText + "\n\n" + out[i]
	}
	return out
}

// splitSentences performs simple punctuation-based sentence splitting,
// skipping common abbreviations so they don't read as sentence ends.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sentence := strings.TrimSpace(current.String())
				if sentence != "" && !isAbbreviation(sentence) {
					sentences = append(sentences, sentence)
					current.Reset()
				}
			}
		}
	}
	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}

var abbreviations = []string{
	"mr.", "mrs.", "ms.", "dr.", "prof.",
	"inc.", "ltd.", "corp.",
	"etc.", "e.g.", "i.e.",
	"vs.", "v.",
	"st.", "ave.", "blvd.",
	"no.", "vol.", "pg.",
}

func isAbbreviation(text string) bool {
	lower := strings.ToLower(text)
	for _, abbr := range abbreviations {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}
