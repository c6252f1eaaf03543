package html

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedTypes returns the file types this extractor handles.
func (e *Extractor) SupportedTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeHTML}
}

// Extract reads an HTML file into a single page.
// PageCount is 1 when any text was found, else 0.
func (e *Extractor) Extract(_ context.Context, path string, opts domain.ExtractOptions) (*domain.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	defer f.Close()

	text, err := Text(f, opts.HTMLMode)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrExtraction, path, err)
	}

	ext := &domain.Extraction{Pages: map[int]string{1: text}}
	if text != "" {
		ext.PageCount = 1
	}
	return ext, nil
}

// Text reduces HTML to plain text using the given parsing mode.
// An unknown mode falls back to generic.
func Text(r io.Reader, mode domain.HTMLParsingMode) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	if mode == domain.HTMLModePipermail {
		return pipermailText(doc), nil
	}
	return genericText(doc), nil
}

// blockAtoms are the elements whose text forms its own block.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Div: true,
}

// genericText emits "Title: ..." and then one block per block element.
// A block holds its own text only; text inside a nested block belongs to
// that nested block.
func genericText(doc *html.Node) string {
	var blocks []string

	if title := find(doc, atom.Title); title != nil {
		if t := strings.TrimSpace(collapse(textOf(title, false))); t != "" {
			blocks = append(blocks, "Title: "+t)
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			if t := collapse(textOf(n, true)); t != "" {
				blocks = append(blocks, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(blocks, "\n\n")
}

// pipermailText extracts the list name, subject, author and body of a
// Pipermail archive message page.
func pipermailText(doc *html.Node) string {
	var parts []string

	if n := find(doc, atom.H1); n != nil {
		parts = append(parts, "List: "+strings.TrimSpace(collapse(textOf(n, false))))
	}
	if n := find(doc, atom.B); n != nil {
		parts = append(parts, "Subject: "+strings.TrimSpace(collapse(textOf(n, false))))
	}
	if n := find(doc, atom.I); n != nil {
		parts = append(parts, "Author: "+strings.TrimSpace(collapse(textOf(n, false))))
	}
	if n := find(doc, atom.Pre); n != nil {
		parts = append(parts, "--- Message Body ---\n"+textOf(n, false))
	}

	return strings.Join(parts, "\n\n")
}

// find returns the first element with the given atom in document order.
func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}

// textOf concatenates descendant text nodes separated by spaces.
// With ownOnly, nested block elements are skipped.
func textOf(n *html.Node, ownOnly bool) string {
	var sb strings.Builder

	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		switch {
		case c.Type == html.TextNode:
			if sb.Len() > 0 && ownOnly {
				sb.WriteByte(' ')
			}
			sb.WriteString(c.Data)
			return
		case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style):
			return
		case c.Type == html.ElementNode && ownOnly && blockAtoms[c.DataAtom]:
			return
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return sb.String()
}

// collapse trims and squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
