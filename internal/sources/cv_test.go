package sources

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/profile-fusion/internal/profile"
)

const docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t>Engineer</w:t><w:tab/><w:t>Acme</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeDOCX(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "cv.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(docxDocument))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func parseFile(t *testing.T, path string) (string, error) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return ParseDocument(filepath.Base(path), data)
}

func TestParseDocument(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(txt, []byte("  Jane Doe\nGo developer \n"), 0o600))

	text, err := parseFile(t, txt)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo developer", text)

	text, err = parseFile(t, writeDOCX(t, dir))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nEngineer\tAcme", text)
}

func TestParseDocumentErrors(t *testing.T) {
	dir := t.TempDir()

	odt := filepath.Join(dir, "cv.odt")
	require.NoError(t, os.WriteFile(odt, []byte("x"), 0o600))
	_, err := parseFile(t, odt)
	assert.ErrorContains(t, err, "unsupported cv format")

	empty := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(empty, []byte(" \n "), 0o600))
	_, err = parseFile(t, empty)
	assert.ErrorContains(t, err, "no text")

	broken := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o600))
	_, err = parseFile(t, broken)
	assert.Error(t, err)
}

func TestCVAdapterExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jane.txt")
	require.NoError(t, os.WriteFile(path, []byte("Jane Doe, Go developer"), 0o600))

	cv := &profile.CVProfile{}
	cv.Name = "Jane Doe"
	extractor := &stubExtractor{cv: cv}

	fragment, err := NewCVAdapter(extractor, 0, nil).Extract(context.Background(), CVRequest{Path: path})
	require.NoError(t, err)

	got, ok := fragment.(*profile.CVProfile)
	require.True(t, ok)
	assert.Equal(t, "jane.txt", got.Extras.FileName)
	assert.Equal(t, "Jane Doe, Go developer", extractor.text)
}

func TestCVAdapterErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	_, err := NewCVAdapter(&stubExtractor{}, 5, nil).Extract(context.Background(), CVRequest{Path: path})
	assert.ErrorContains(t, err, "limit")

	_, err = NewCVAdapter(&stubExtractor{}, 0, nil).Extract(context.Background(), CVRequest{Path: filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)

	_, err = NewCVAdapter(nil, 0, nil).Extract(context.Background(), CVRequest{Path: path})
	assert.Error(t, err)

	cause := errors.New("model down")
	_, err = NewCVAdapter(&stubExtractor{err: cause}, 0, nil).Extract(context.Background(), CVRequest{Path: path})
	assert.ErrorIs(t, err, cause)

	_, err = NewCVAdapter(&stubExtractor{}, 0, nil).Extract(context.Background(), GitHubRequest{})
	assert.Error(t, err)
}

func TestCVAdapterUploadedData(t *testing.T) {
	cv := &profile.CVProfile{}
	cv.Name = "Jane Doe"
	extractor := &stubExtractor{cv: cv}
	adapter := NewCVAdapter(extractor, 64, nil)

	fragment, err := adapter.Extract(context.Background(), CVRequest{
		Name: "../uploads/jane.md",
		Data: []byte("# Jane Doe\n\nGo developer"),
	})
	require.NoError(t, err)
	assert.Equal(t, "jane.md", fragment.(*profile.CVProfile).Extras.FileName)
	assert.Equal(t, "# Jane Doe\n\nGo developer", extractor.text)

	_, err = adapter.Extract(context.Background(), CVRequest{Data: []byte("text")})
	assert.ErrorContains(t, err, "file name")

	_, err = adapter.Extract(context.Background(), CVRequest{Name: "big.txt", Data: make([]byte, 65)})
	assert.ErrorContains(t, err, "limit")
}
