// Package segment loads documents as ordered segments (pages for PDFs,
// paragraph groups for Word files) for metadata extraction and chunking.
package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/pkg/version"
)

// Kind is a declared document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindWord Kind = "word"
	KindText Kind = "text"
)

// PageBreak separates segment texts joined for a single extraction call.
const PageBreak = "\n\n--- PAGE BREAK ---\n\n"

// Segment is one unit of raw document content.
type Segment struct {
	Index    int
	Text     string
	Source   string
	Metadata map[string]any
}

// Source points at a document.
type Source struct {
	Path string
	URL  string
	Kind Kind
}

// KindFromExtension maps a file extension to a Kind.
func KindFromExtension(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, true
	case ".docx":
		return KindWord, true
	case ".txt", ".md":
		return KindText, true
	}
	return "", false
}

// ParseKind maps a user-facing document type name to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pdf":
		return KindPDF, true
	case "word", "docx":
		return KindWord, true
	case "text", "txt":
		return KindText, true
	}
	return "", false
}

// Options configures a Loader.
type Options struct {
	// PDFLicenseKey is a UniDoc metered key. Empty means unlicensed mode.
	PDFLicenseKey string
	// WordSegmentChars is the target segment size for Word documents.
	WordSegmentChars int
	// MaxDownloadBytes caps URL downloads.
	MaxDownloadBytes int64
	// HTTPClient fetches URLs. Defaults to a client with a 60s timeout.
	HTTPClient *http.Client
}

// Loader turns a Source into segments.
type Loader struct {
	opts        Options
	licenseOnce sync.Once
	licenseErr  error
}

// NewLoader creates a Loader.
func NewLoader(opts Options) *Loader {
	if opts.WordSegmentChars <= 0 {
		opts.WordSegmentChars = 3000
	}
	if opts.MaxDownloadBytes <= 0 {
		opts.MaxDownloadBytes = 50 * 1024 * 1024
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Loader{opts: opts}
}

// Load reads src and returns its segments in document order.
func (l *Loader) Load(ctx context.Context, src Source) ([]Segment, error) {
	if src.Path == "" && src.URL == "" {
		return nil, clerrors.ValidationError("either a path or a URL is required", nil)
	}

	var (
		texts  []string
		err    error
		source = src.Path
	)
	if source == "" {
		source = src.URL
	}

	switch src.Kind {
	case KindPDF:
		texts, err = l.loadPDF(ctx, src)
	case KindWord:
		if src.Path == "" {
			return nil, clerrors.ValidationError("URL loading is not supported for Word documents", nil)
		}
		texts, err = loadWord(src.Path, l.opts.WordSegmentChars)
	case KindText:
		if src.Path == "" {
			return nil, clerrors.ValidationError("URL loading is not supported for text documents", nil)
		}
		texts, err = loadText(src.Path)
	default:
		return nil, clerrors.New(clerrors.ErrCodeUnsupportedFileType,
			fmt.Sprintf("unsupported document type %q, use pdf, word or text", src.Kind), nil)
	}
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "document has no content", nil)
	}

	segments := make([]Segment, len(texts))
	for i, text := range texts {
		segments[i] = Segment{
			Index:  i,
			Text:   text,
			Source: source,
			Metadata: map[string]any{
				"source":         source,
				"kind":           string(src.Kind),
				"total_segments": len(texts),
			},
		}
	}
	return segments, nil
}

// Texts returns the text of each segment.
func Texts(segments []Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Text
	}
	return out
}

// Join concatenates segment texts with PageBreak between them.
func Join(segments []Segment) string {
	return strings.Join(Texts(segments), PageBreak)
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, clerrors.ValidationError("invalid document URL", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := l.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeNetworkUnavailable, "failed to download document", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad,
			fmt.Sprintf("document download returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.opts.MaxDownloadBytes+1))
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeNetworkUnavailable, "failed to download document", err)
	}
	if int64(len(data)) > l.opts.MaxDownloadBytes {
		return nil, clerrors.New(clerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("document exceeds %d bytes", l.opts.MaxDownloadBytes), nil)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clerrors.New(clerrors.ErrCodeFileNotFound, "document not found", err).WithDetail("path", path)
		}
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to read document", err).WithDetail("path", path)
	}
	return data, nil
}

func loadText(path string) ([]string, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var pages []string
	for _, page := range strings.Split(string(bytes.ToValidUTF8(data, nil)), "\f") {
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	return pages, nil
}
