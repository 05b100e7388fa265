package ebook

import (
	"strings"

	"golang.org/x/net/html"
)

// Page is one fixed-size slice of the book text.
type Page struct {
	Number  int    `json:"number"`
	Chapter int    `json:"chapter"` // spine index
	Words   int    `json:"words"`
	Text    string `json:"text"` // paragraphs separated by blank lines
	HTML    string `json:"-"`
}

// paginator packs blocks into pages of at most perPage words. Chapters always
// start on a new page, and blocks stay whole unless they alone exceed a page.
type paginator struct {
	perPage int
	pages   []Page

	cur      Page
	curText  []string
	curHTML  strings.Builder
	curWords int
}

func newPaginator(perPage int) *paginator {
	return &paginator{perPage: perPage}
}

// addChapter paginates one chapter and returns its first page and word count.
// A chapter without text has first page 0.
func (p *paginator) addChapter(index int, blocks []block) (firstPage, words int) {
	p.flush()
	for _, b := range blocks {
		for _, part := range p.split(b) {
			n := len(strings.Fields(part.text))
			if p.curWords > 0 && p.curWords+n > p.perPage {
				p.flush()
			}
			if p.curWords == 0 {
				p.cur = Page{Chapter: index}
				if firstPage == 0 {
					firstPage = len(p.pages) + 1
				}
			}
			p.curText = append(p.curText, part.text)
			p.curHTML.WriteString(part.html)
			p.curWords += n
			words += n
		}
	}
	p.flush()
	return firstPage, words
}

// split cuts a block longer than one page into page-sized plain paragraphs.
func (p *paginator) split(b block) []block {
	fields := strings.Fields(b.text)
	if len(fields) <= p.perPage {
		return []block{b}
	}
	var parts []block
	for start := 0; start < len(fields); start += p.perPage {
		end := min(start+p.perPage, len(fields))
		text := strings.Join(fields[start:end], " ")
		parts = append(parts, block{text: text, html: "<p>" + html.EscapeString(text) + "</p>"})
	}
	return parts
}

func (p *paginator) flush() {
	if p.curWords == 0 {
		return
	}
	p.cur.Number = len(p.pages) + 1
	p.cur.Words = p.curWords
	p.cur.Text = strings.Join(p.curText, "\n\n")
	p.cur.HTML = p.curHTML.String()
	p.pages = append(p.pages, p.cur)

	p.cur = Page{}
	p.curText = nil
	p.curHTML.Reset()
	p.curWords = 0
}

func (p *paginator) finish() []Page {
	p.flush()
	if len(p.pages) == 0 {
		return []Page{{Number: 1}}
	}
	return p.pages
}
