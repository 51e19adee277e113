package segment

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

// loadWord reads word/document.xml and groups paragraphs into segments of
// about target characters. A paragraph is never split.
func loadWord(path string, target int) ([]string, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "file is not a .docx archive", err)
	}

	var body []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to open document body", err)
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to read document body", err)
		}
		break
	}
	if body == nil {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "archive has no word/document.xml", nil)
	}

	var doc wordDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, clerrors.New(clerrors.ErrCodeDocumentLoad, "failed to parse document body", err)
	}

	var paragraphs []string
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return groupParagraphs(paragraphs, target), nil
}

func groupParagraphs(paragraphs []string, target int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, p := range paragraphs {
		if cur.Len() > 0 && cur.Len()+len(p)+1 > target {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
