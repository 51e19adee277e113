package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/claridoc/internal/config"
	"github.com/Aman-CERP/claridoc/internal/pipeline"
	"github.com/Aman-CERP/claridoc/internal/segment"
	"github.com/Aman-CERP/claridoc/internal/ui"
	"github.com/Aman-CERP/claridoc/internal/validation"
)

// documentRequest builds an ingest request for a local path or an http(s)
// URL. The document ID is the file's base name, which is also the key
// "claridoc vocab" looks up.
func documentRequest(source, docType string) (pipeline.IngestRequest, error) {
	req := pipeline.IngestRequest{}
	name := filepath.Base(source)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if err := validation.ValidateURL(source); err != nil {
			return req, err
		}
		parsed, _ := url.Parse(source)
		name = path.Base(parsed.Path)
		req.URL = source
	} else {
		abs, err := filepath.Abs(source)
		if err != nil {
			return req, fmt.Errorf("resolve %s: %w", source, err)
		}
		req.Path = abs
	}

	var ok bool
	if docType != "" {
		req.Kind, ok = segment.ParseKind(docType)
	} else {
		req.Kind, ok = segment.KindFromExtension(name)
	}
	if !ok {
		return req, fmt.Errorf("cannot tell the document type of %q; pass --type pdf, word or text", name)
	}
	req.DocumentID = validation.SanitizeFilename(name)
	return req, nil
}

// openService builds the pipeline and returns it with its closer.
func openService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Service, func(), error) {
	svc, closeFn, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() {
		if err := closeFn(); err != nil {
			logger.Warn("failed to close embedder", slog.String("error", err.Error()))
		}
	}, nil
}

// ingestSource opens the pipeline and ingests one document. The returned
// function closes both; the vocabulary stays on disk.
func ingestSource(ctx context.Context, source, docType string) (*pipeline.Service, *pipeline.Document, func(), error) {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return nil, nil, nil, err
	}
	req, err := documentRequest(source, docType)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, closeFn, err := openService(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	doc, err := svc.Ingest(ctx, req)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return svc, doc, func() {
		_ = svc.Close(doc)
		closeFn()
	}, nil
}

// toReply converts a pipeline answer for display.
func toReply(ans *pipeline.Answer) ui.Reply {
	reply := ui.Reply{Answer: ans.Text, Degraded: ans.Degraded}
	for _, src := range ans.Sources {
		reply.Sources = append(reply.Sources, ui.Source{Page: src.Page, Text: src.Text, Score: src.Score})
	}
	return reply
}
