package segment

import (
	"bytes"
	"context"
	"fmt"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

// loadPDF returns one text per page. Blank pages are kept so page numbers
// stay aligned with the document; the chunker skips them.
func (l *Loader) loadPDF(ctx context.Context, src Source) ([]string, error) {
	if err := l.setLicense(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	if src.Path != "" {
		data, err = readFile(src.Path)
	} else {
		data, err = l.download(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to open PDF", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to count PDF pages", err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, fmt.Sprintf("failed to read PDF page %d", i), err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, fmt.Sprintf("failed to read PDF page %d", i), err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, fmt.Sprintf("failed to extract PDF page %d", i), err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// setLicense registers the metered key once per loader.
func (l *Loader) setLicense() error {
	l.licenseOnce.Do(func() {
		if l.opts.PDFLicenseKey == "" {
			return
		}
		if err := license.SetMeteredKey(l.opts.PDFLicenseKey); err != nil {
			l.licenseErr = clerrors.ConfigError("failed to set UniDoc license key", err)
		}
	})
	return l.licenseErr
}
