// Package ebooktest builds small EPUB files for tests.
package ebooktest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture describes the EPUB to write.
type Fixture struct {
	Title       string
	Author      string
	Description string
	Language    string   // dc:language; defaults to en
	Chapters    []string // XHTML body contents, one spine document each
	CoverID     string   // manifest id of the image; empty for none
	CoverHref   string   // defaults to images/cover.png
	CoverData   []byte
}

// Write builds a minimal EPUB 2 package under t.TempDir and returns its path.
func Write(t testing.TB, fx Fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(path, Bytes(t, fx), 0o644))
	return path
}

// Bytes returns the EPUB archive for fx.
func Bytes(t testing.TB, fx Fixture) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, body string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	add("mimetype", "application/epub+zip")
	add("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	lang := fx.Language
	if lang == "" {
		lang = "en"
	}

	var manifest, spine strings.Builder
	for i, body := range fx.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		fmt.Fprintf(&manifest, `<item id="%s" href="text/%s.xhtml" media-type="application/xhtml+xml"/>`+"\n", id, id)
		fmt.Fprintf(&spine, `<itemref idref="%s"/>`+"\n", id)
		add("OEBPS/text/"+id+".xhtml", `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title><style>p{}</style></head>
<body>`+body+`</body></html>`)
	}
	if fx.CoverID != "" {
		href := fx.CoverHref
		if href == "" {
			href = "images/cover.png"
		}
		fmt.Fprintf(&manifest, `<item id="%s" href="%s" media-type="image/png"/>`+"\n", fx.CoverID, href)
		w, err := zw.Create("OEBPS/" + href)
		require.NoError(t, err)
		_, err = w.Write(fx.CoverData)
		require.NoError(t, err)
	}

	add("OEBPS/content.opf", `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>`+fx.Title+`</dc:title>
    <dc:creator>`+fx.Author+`</dc:creator>
    <dc:language>`+lang+`</dc:language>
    <dc:publisher>Booksy Press</dc:publisher>
    <dc:description>`+fx.Description+`</dc:description>
  </metadata>
  <manifest>
`+manifest.String()+`  </manifest>
  <spine>
`+spine.String()+`  </spine>
</package>`)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Words returns n distinct words.
func Words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}
