package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxDocumentPath is the fixed location of the main document part inside
// the OOXML package (ECMA-376).
const docxDocumentPath = "word/document.xml"

// docxText extracts paragraph texts from a .docx file.
//
// A .docx is a zip archive; the body text lives in word/document.xml as
// <w:p> paragraph elements containing <w:t> text runs. The decoder walks
// the token stream directly: paragraph boundaries flush the accumulated
// run text, and empty paragraphs are dropped. Tabs and explicit breaks
// inside a run become whitespace so words do not fuse.
func docxText(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	var doc *zip.File
	for _, f := range r.File {
		if f.Name == docxDocumentPath {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx archive has no %s", docxDocumentPath)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", docxDocumentPath, err)
	}
	defer func() { _ = rc.Close() }()

	return parseDocumentXML(rc)
}

// parseDocumentXML walks the WordprocessingML token stream and joins all
// non-empty paragraph texts with newlines.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		para       strings.Builder
		inText     bool
	)

	flush := func() {
		if text := strings.TrimSpace(para.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "br", "cr":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush() // text after the last closing paragraph, if the file is odd

	return strings.Join(paragraphs, "\n"), nil
}
