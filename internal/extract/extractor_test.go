package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractTxt(t *testing.T) {
	path := writeTempFile(t, "doc.txt", []byte("plain text content"))

	text, err := New().Extract(path, "txt")

	require.NoError(t, err)
	assert.Equal(t, "plain text content", text)
}

func TestExtractMarkdownAsPlainText(t *testing.T) {
	path := writeTempFile(t, "notes.md", []byte("# Heading\n\nBody text."))

	text, err := New().Extract(path, "md")

	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nBody text.", text)
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := New().Extract("whatever.xyz", "xyz")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestExtractDocxMergesRunsAndParagraphs(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Introduction</w:t></w:r></w:p>
<w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>sentence.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Terms</w:t></w:r></w:p>
<w:p><w:r><w:t>Second sentence.</w:t></w:r></w:p>
</w:body>
</w:document>`
	path := writeTempFile(t, "doc.docx", buildDocx(t, docXML))

	text, err := New().Extract(path, "docx")

	require.NoError(t, err)
	assert.Equal(t, "Introduction First sentence.\n\nTerms Second sentence.", text)
}

func TestExtractDocxMissingDocumentXML(t *testing.T) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := writeTempFile(t, "doc.docx", buf.Bytes())

	_, err = New().Extract(path, "docx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestExtractPdfNamedTextFile(t *testing.T) {
	// A .pdf extension without the PDF header is read as plain text.
	path := writeTempFile(t, "doc.pdf", []byte("actually just text"))

	text, err := New().Extract(path, "pdf")

	require.NoError(t, err)
	assert.Equal(t, "actually just text", text)
}

func TestExtractPdfNamedBinaryFile(t *testing.T) {
	path := writeTempFile(t, "doc.pdf", []byte{0x00, 0xff, 0xfe, 0x01, 0x80, 0x81})

	_, err := New().Extract(path, "pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a PDF nor readable text")
}

func TestExtractHTMLStripsBoilerplate(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
<body>
<nav>navigation links</nav>
<p>The   actual
content.</p>
<script>alert("x")</script>
<footer>footer text</footer>
</body></html>`
	path := writeTempFile(t, "doc.html", []byte(html))

	text, err := New().Extract(path, "html")

	require.NoError(t, err)
	assert.Equal(t, "The actual content.", text)
	assert.NotContains(t, text, "navigation")
	assert.NotContains(t, text, "footer")
	assert.NotContains(t, text, "alert")
}

func TestRebuildParagraphs(t *testing.T) {
	text := "A line that continues\nand ends here.\nNext paragraph starts.\n"

	out := rebuildParagraphs(text)

	assert.Equal(t, "A line that continues and ends here.\n\nNext paragraph starts.", out)
}
