package extractor

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeTempFile(t, "doc.txt", []byte("hello world\nsecond line"))

	text, err := New().Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
}

func TestExtractMarkdown(t *testing.T) {
	path := writeTempFile(t, "doc.md", []byte("# Title\n\nbody text"))

	text, err := New().Extract(path)
	require.NoError(t, err)
	assert.Contains(t, text, "body text")
}

func TestExtractPlainTextReplacesInvalidUTF8(t *testing.T) {
	raw := append([]byte{0xff, 0xfe}, []byte("hi")...)
	path := writeTempFile(t, "broken.txt", raw)

	text, err := New().Extract(path)
	require.NoError(t, err, "编码问题不应导致抽取失败")
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "hi")
	assert.Contains(t, text, string(utf8.RuneError))
}

func TestExtractUnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "image.png", []byte("not a document"))

	_, err := New().Extract(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractCorruptPDF(t *testing.T) {
	path := writeTempFile(t, "corrupt.pdf", []byte("definitely not a pdf"))

	_, err := New().Extract(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

// buildDocx 在测试里手工构造一个最小的 docx 压缩包。
func buildDocx(t *testing.T, documentXML string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return writeTempFile(t, "doc.docx", buf.Bytes())
}

func TestExtractDocx(t *testing.T) {
	path := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := New().Extract(path)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	// 段落之间以换行分隔
	assert.Less(t,
		bytes.IndexByte([]byte(text), '\n'),
		bytes.Index([]byte(text), []byte("Second")))
}

func TestExtractDocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<nope/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := writeTempFile(t, "empty.docx", buf.Bytes())

	_, err = New().Extract(path)
	assert.Error(t, err)
}

func TestExtractDocxNotAZip(t *testing.T) {
	path := writeTempFile(t, "fake.docx", []byte("plain bytes"))

	_, err := New().Extract(path)
	assert.Error(t, err)
}
