// Package text loads the input document and splits it into sentence-sized
// chunks for synthesis.
//
// Normalization drops slide-title lines, folds the document onto a single
// line and strips double quotes. Splitting happens after '.', '?' or '!'
// followed by whitespace; the punctuation stays with its sentence.
package text

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SlideMarker prefixes lines that are slide titles rather than narration.
const SlideMarker = "Slide "

var (
	// ErrNotFound is returned when the input path does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrEmptyInput is returned when the input holds nothing to speak.
	ErrEmptyInput = errors.New("input is empty")
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// sentenceEnd matches a terminator and the whitespace run after it.
	// \s is ASCII-only in RE2; \v, NEL and the Unicode separators such as
	// NBSP are listed explicitly.
	sentenceEnd = regexp.MustCompile(`[.?!][\s\v\x{85}\p{Z}]+`)

	lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Document is the raw content of one input file.
type Document struct {
	Path    string
	Content string
}

// Load reads the file at path as UTF-8 text.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, string(utf8.RuneError))
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, path)
	}

	return &Document{Path: path, Content: content}, nil
}

// Normalize removes slide-title lines, joins the remaining lines with single
// spaces and deletes every double-quote character. "\n", "\r\n" and a lone
// "\r" all end a line.
func Normalize(content string) string {
	lines := strings.Split(lineBreaks.Replace(content), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), SlideMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.ReplaceAll(strings.Join(kept, " "), `"`, "")
}

// Split cuts normalized text into trimmed, non-empty sentences.
func Split(normalized string) []string {
	var chunks []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			chunks = append(chunks, s)
		}
	}

	start := 0
	for _, m := range sentenceEnd.FindAllStringIndex(normalized, -1) {
		// m[0] is the terminator; it is one byte wide.
		add(normalized[start : m[0]+1])
		start = m[1]
	}
	add(normalized[start:])

	return chunks
}

// Chunk normalizes content and splits it into sentences.
func Chunk(content string) []string {
	return Split(Normalize(content))
}
