package ebook

import (
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cover is an embedded cover image.
type Cover struct {
	Href      string
	MediaType string
	Data      []byte
}

// findCover tries, in order:
//  1. a manifest image whose id or href mentions "cover"
//  2. the first <img> of the first spine document
func findCover(pkg *epub.Rootfile) (*Cover, error) {
	for i := range pkg.Manifest.Items {
		item := &pkg.Manifest.Items[i]
		if !isImage(item.MediaType) {
			continue
		}
		if containsFold(item.ID, "cover") || containsFold(item.HREF, "cover") {
			return loadCover(item)
		}
	}

	if len(pkg.Spine.Itemrefs) > 0 && pkg.Spine.Itemrefs[0].Item != nil {
		first := pkg.Spine.Itemrefs[0].Item
		src, err := firstImageSrc(first)
		if err == nil && src != "" {
			target := path.Clean(path.Join(path.Dir(first.HREF), src))
			for i := range pkg.Manifest.Items {
				item := &pkg.Manifest.Items[i]
				if isImage(item.MediaType) && path.Clean(item.HREF) == target {
					return loadCover(item)
				}
			}
		}
	}
	return nil, ErrNoCover
}

func loadCover(item *epub.Item) (*Cover, error) {
	r, err := item.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Cover{Href: item.HREF, MediaType: item.MediaType, Data: data}, nil
}

func firstImageSrc(item *epub.Item) (string, error) {
	r, err := item.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var src string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Img:
				src = attr(n, "src")
			case atom.Image: // <svg><image xlink:href=...>
				src = attr(n, "href")
			}
			if src != "" {
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return src, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
