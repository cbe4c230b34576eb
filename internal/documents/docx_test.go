package documents

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/faults"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph split across runs.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr><w:tc><w:p><w:r><w:t>Cell text.</w:t></w:r></w:p></w:tc></w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func TestExtractParagraphs(t *testing.T) {
	text, err := extractParagraphs(strings.NewReader(sampleDocumentXML))
	require.NoError(t, err)
	require.Equal(t, "First paragraph.\n\nSecond paragraph split across runs.\n\nCell text.", text)
}

func TestExtractParagraphsIgnoresTextOutsideParagraphs(t *testing.T) {
	xmlBody := `<doc>stray text<p>kept</p>more stray</doc>`
	text, err := extractParagraphs(strings.NewReader(xmlBody))
	require.NoError(t, err)
	require.Equal(t, "kept", text)
}

func TestExtractParagraphsMalformedXML(t *testing.T) {
	_, err := extractParagraphs(strings.NewReader("<w:document><w:p>unclosed"))
	require.Error(t, err)
}

func writeDocx(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractDocx(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   sampleDocumentXML,
	})
	text, err := ExtractDocx(path)
	require.NoError(t, err)
	require.Contains(t, text, "First paragraph.")
	require.Contains(t, text, "Cell text.")
}

func TestExtractDocxMissingDocumentXML(t *testing.T) {
	path := writeDocx(t, map[string]string{"other.xml": "<x/>"})
	_, err := ExtractDocx(path)
	require.Error(t, err)
	require.Equal(t, faults.TypeFile, faults.Classify(err))
}

func TestExtractDocxNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a zip"), 0o600))
	_, err := ExtractDocx(path)
	require.Error(t, err)
}

func TestExtractDispatch(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain notes"), 0o600))
	text, err := Extract(txt)
	require.NoError(t, err)
	require.Equal(t, "plain notes", text)

	md := filepath.Join(dir, "README.MD")
	require.NoError(t, os.WriteFile(md, []byte("# heading"), 0o600))
	text, err = Extract(md)
	require.NoError(t, err)
	require.Equal(t, "# heading", text)

	_, err = Extract(filepath.Join(dir, "image.png"))
	require.Error(t, err)
	require.Equal(t, faults.TypeValidation, faults.Classify(err))
}
