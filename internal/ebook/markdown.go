package ebook

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// Markdown renders page n as Markdown. Pages that fail to convert fall back
// to their plain text.
func (b *Book) Markdown(n int) (string, error) {
	page, err := b.Page(n)
	if err != nil {
		return "", err
	}
	return PageMarkdown(page), nil
}

// PageMarkdown converts the page markup to Markdown.
func PageMarkdown(page Page) string {
	if page.HTML == "" {
		return page.Text
	}
	md, err := htmltomarkdown.ConvertString(page.HTML)
	if err != nil {
		return page.Text
	}
	return strings.TrimSpace(md)
}

// cleanDescription turns an OPF description, which is often HTML, into
// Markdown.
func cleanDescription(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !containsHTML(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}
