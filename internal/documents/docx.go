package documents

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurolearn/backend/internal/faults"
)

// ExtractDocx pulls the text out of a .docx file. A docx is a zip archive;
// the body lives in word/document.xml. Paragraphs (w:p elements) are trimmed
// and joined with blank lines, which also covers text inside table cells.
func ExtractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeFile, "open docx archive")
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", faults.New(faults.TypeFile, "docx archive has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", faults.Wrap(err, faults.TypeFile, "open document.xml")
	}
	defer rc.Close()

	text, err := extractParagraphs(rc)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeFile, "parse document.xml")
	}
	return text, nil
}

// extractParagraphs streams the WordprocessingML body, collecting character
// data per w:p element.
func extractParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == "p" && depth > 0 {
				depth--
				if depth == 0 {
					if p := strings.TrimSpace(current.String()); p != "" {
						paragraphs = append(paragraphs, p)
					}
					current.Reset()
				}
			}
		case xml.CharData:
			if depth > 0 {
				current.Write(t)
			}
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// Extract dispatches on the filename extension. Plain text and markdown pass
// through unchanged; docx goes through the archive extractor.
func Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return ExtractDocx(path)
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", faults.Wrap(err, faults.TypeFile, "read document")
		}
		return string(raw), nil
	default:
		return "", faults.New(faults.TypeValidation, fmt.Sprintf("unsupported document format: %s", filepath.Ext(path)))
	}
}
