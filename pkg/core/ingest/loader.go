// Package ingest turns configuration documents (markdown or HTML tables
// under headings) into a Parameter Store.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// Format selects the document parser.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported configuration file %q", path)
}

// Loader converts documents to stores. Combination rules named in the
// document are checked against Rules.
type Loader struct {
	Rules *resolve.Rules
	md    goldmark.Markdown
}

// NewLoader creates a loader; nil rules selects the built-in set.
func NewLoader(rules *resolve.Rules) *Loader {
	if rules == nil {
		rules = resolve.Default()
	}
	return &Loader{
		Rules: rules,
		md:    goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// LoadFile reads and parses one configuration file.
func LoadFile(path string) (*params.Store, error) {
	return NewLoader(nil).LoadFile(path)
}

// LoadWithDefaults loads input and fills gaps from defaults. Entries in
// input always win.
func LoadWithDefaults(input, defaults string) (*params.Store, error) {
	return NewLoader(nil).LoadWithDefaults(input, defaults)
}

func (l *Loader) LoadFile(path string) (*params.Store, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration: %w", err)
	}
	defer f.Close()

	s, err := l.Load(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

func (l *Loader) LoadWithDefaults(input, defaults string) (*params.Store, error) {
	s, err := l.LoadFile(input)
	if err != nil {
		return nil, err
	}
	if defaults == "" {
		return s, nil
	}
	d, err := l.LoadFile(defaults)
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	if err := s.Merge(d); err != nil {
		return nil, err
	}
	return s, nil
}

// Load parses a document of the given format.
func (l *Loader) Load(r io.Reader, format Format) (*params.Store, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	html := src
	switch format {
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := l.md.Convert(joinTableRows(src), &buf); err != nil {
			return nil, fmt.Errorf("markdown conversion failed: %w", err)
		}
		html = buf.Bytes()
	case FormatHTML:
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	return l.build(extractTables(doc))
}

// joinTableRows drops blank lines sitting between two table lines so that
// loosely spaced tables still parse as one GFM table.
func joinTableRows(src []byte) []byte {
	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" && len(out) > 0 && isTableLine(out[len(out)-1]) {
			if next := nextNonBlank(lines, i); next >= 0 && isTableLine(lines[next]) {
				continue
			}
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n"))
}

func isTableLine(s string) bool {
	t := strings.TrimSpace(s)
	return t != "" && !strings.HasPrefix(t, "#") && strings.Contains(t, "|")
}

func nextNonBlank(lines []string, from int) int {
	for j := from + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return j
		}
	}
	return -1
}
