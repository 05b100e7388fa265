package ebook

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// block is one paragraph-level unit of a chapter.
type block struct {
	text    string // whitespace-collapsed plain text
	html    string // rendered source markup
	heading bool
}

// blockTags start a new paragraph-level unit.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.Figcaption: true,
	atom.Tr:         true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Table:      true,
}

var headingTags = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

var skipTags = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
}

// extractBlocks parses an XHTML document into paragraph-level blocks in
// document order. Inline content that sits directly in a container is
// gathered into an implicit paragraph.
func extractBlocks(r io.Reader) ([]block, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	c := &collector{}
	c.walk(doc)
	c.flush()
	return c.blocks, nil
}

type collector struct {
	blocks  []block
	pending []*html.Node
}

func (c *collector) walk(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch {
		case child.Type == html.ElementNode && skipTags[child.DataAtom]:
		case child.Type == html.ElementNode && hasBlockDescendant(child):
			c.flush()
			c.walk(child)
			c.flush()
		case child.Type == html.ElementNode && blockTags[child.DataAtom]:
			c.flush()
			c.emit(child)
		case child.Type == html.ElementNode || child.Type == html.TextNode:
			c.pending = append(c.pending, child)
		}
	}
}

func (c *collector) emit(n *html.Node) {
	text := collapse(textOf(n))
	if text == "" {
		return
	}
	c.blocks = append(c.blocks, block{
		text:    text,
		html:    render(n),
		heading: headingTags[n.DataAtom],
	})
}

// flush turns gathered inline nodes into an implicit paragraph.
func (c *collector) flush() {
	if len(c.pending) == 0 {
		return
	}
	var text strings.Builder
	var markup bytes.Buffer
	markup.WriteString("<p>")
	for _, n := range c.pending {
		text.WriteString(textOf(n))
		_ = html.Render(&markup, n)
	}
	markup.WriteString("</p>")
	c.pending = c.pending[:0]

	if t := collapse(text.String()); t != "" {
		c.blocks = append(c.blocks, block{text: t, html: markup.String()})
	}
}

func hasBlockDescendant(n *html.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if blockTags[child.DataAtom] || hasBlockDescendant(child) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && skipTags[n.DataAtom]:
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "<p>" + html.EscapeString(collapse(textOf(n))) + "</p>"
	}
	return buf.String()
}

// collapse joins all whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func chapterTitle(blocks []block) string {
	for _, b := range blocks {
		if b.heading {
			return b.text
		}
	}
	return ""
}
