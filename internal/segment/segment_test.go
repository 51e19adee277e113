package segment

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

func writeDocx(t *testing.T, paragraphs ...string) string {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "policy.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoad_TextSplitsOnFormFeed(t *testing.T) {
	// Given: a text file with three pages, one blank
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("page one\fpage two\f  \fpage three"), 0o644))

	// When: loading it
	segs, err := NewLoader(Options{}).Load(context.Background(), Source{Path: path, Kind: KindText})

	// Then: blank pages are dropped and indices are contiguous
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "page one", segs[0].Text)
	assert.Equal(t, 2, segs[2].Index)
	assert.Equal(t, path, segs[1].Source)
	assert.Equal(t, 3, segs[1].Metadata["total_segments"])
	assert.Equal(t, "text", segs[1].Metadata["kind"])
}

func TestLoad_WordGroupsParagraphs(t *testing.T) {
	// Given: a docx with four short paragraphs
	path := writeDocx(t, "Section 1 coverage", "Section 2 exclusions", "Section 3 claims", "Section 4 notes")

	// When: loading with a small segment target
	segs, err := NewLoader(Options{WordSegmentChars: 40}).Load(context.Background(), Source{Path: path, Kind: KindWord})

	// Then: paragraphs are grouped without being split
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "Section 1 coverage\nSection 2 exclusions", segs[0].Text)
	assert.Equal(t, "Section 3 claims\nSection 4 notes", segs[1].Text)
}

func TestLoad_WordRejectsURL(t *testing.T) {
	_, err := NewLoader(Options{}).Load(context.Background(), Source{URL: "http://example.com/a.docx", Kind: KindWord})

	require.Error(t, err)
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeInvalidInput))
}

func TestLoad_WordRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := NewLoader(Options{}).Load(context.Background(), Source{Path: path, Kind: KindWord})

	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeDocumentLoad))
}

func TestLoad_UnsupportedKind(t *testing.T) {
	_, err := NewLoader(Options{}).Load(context.Background(), Source{Path: "x.rtf", Kind: "rtf"})

	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeUnsupportedFileType))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(Options{}).Load(context.Background(),
		Source{Path: filepath.Join(t.TempDir(), "missing.pdf"), Kind: KindPDF})

	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeFileNotFound))
}

func TestLoad_RequiresPathOrURL(t *testing.T) {
	_, err := NewLoader(Options{}).Load(context.Background(), Source{Kind: KindPDF})

	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeInvalidInput))
}

func TestLoad_PDFDownloadTooLarge(t *testing.T) {
	// Given: a server returning more bytes than allowed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	// When: loading with a 1KB cap
	_, err := NewLoader(Options{MaxDownloadBytes: 1024}).Load(context.Background(),
		Source{URL: srv.URL + "/doc.pdf", Kind: KindPDF})

	// Then: the size limit is reported
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeFileTooLarge))
}

func TestLoad_PDFDownloadBadStatus(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.UserAgent()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewLoader(Options{}).Load(context.Background(), Source{URL: srv.URL, Kind: KindPDF})

	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeDocumentLoad))
	assert.True(t, strings.HasPrefix(agent, "claridoc/"))
}

func TestJoin_UsesPageBreak(t *testing.T) {
	segs := []Segment{{Text: "a"}, {Text: "b"}}

	assert.Equal(t, "a"+PageBreak+"b", Join(segs))
	assert.Equal(t, "", Join(nil))
}

func TestKindFromExtension(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		ok   bool
	}{
		{"a.PDF", KindPDF, true},
		{"a.docx", KindWord, true},
		{"a.txt", KindText, true},
		{"a.doc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindFromExtension(tt.name)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{"PDF": KindPDF, "word": KindWord, "docx": KindWord, " text ": KindText} {
		kind, ok := ParseKind(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, kind, name)
	}
	_, ok := ParseKind("xlsx")
	assert.False(t, ok)
}
