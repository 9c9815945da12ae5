// Package attachment implements §4.F, the Attachment Processor: filters a
// page's attachments to extractable extensions and downloads and extracts
// text lazily. The image-only skip heuristic is the injected
// extractor.TextExtractor's contract, not this package's — the processor
// only ever sees "empty" for content the extractor decided to skip.
package attachment

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/extractor"
	"github.com/arc-self/wikipii-scan/internal/source"
)

// Processed is one (attachment, extractedText) pair ready for detection.
type Processed struct {
	Info domain.AttachmentInfo
	Text string
}

// Processor filters, downloads, and extracts attachment text for a page.
type Processor struct {
	src        source.ContentSource
	extractor  extractor.TextExtractor
	extensions map[string]bool
}

// New constructs a Processor. extensions defaults to
// domain.DefaultExtractableExtensions() when nil.
func New(src source.ContentSource, ex extractor.TextExtractor, extensions map[string]bool) *Processor {
	if extensions == nil {
		extensions = domain.DefaultExtractableExtensions()
	}
	return &Processor{src: src, extractor: ex, extensions: extensions}
}

// Stream lists a page's attachments, filters to extractable extensions,
// and yields extracted text for each one whose extractor output isn't
// blank. A per-attachment download or extraction failure is reported via
// onError and processing continues with the next attachment (§4.F, §7
// non-fatal per-item error isolation).
func (p *Processor) Stream(ctx context.Context, space domain.SpaceKey, page source.PageId, onError func(domain.AttachmentInfo, error)) ([]Processed, error) {
	infos, err := p.src.ListAttachments(ctx, space, page)
	if err != nil {
		return nil, fmt.Errorf("attachment: list: %w", err)
	}

	var out []Processed
	for _, info := range infos {
		if !p.extractable(info) {
			continue
		}
		data, err := p.src.DownloadAttachment(ctx, space, page, info.Name)
		if err != nil {
			if onError != nil {
				onError(info, err)
			}
			continue
		}
		if len(data) == 0 {
			continue // nothing downloadable, not an error (§4.F step 2)
		}
		text, err := p.extractor.Extract(ctx, info.MimeType, data)
		if err != nil {
			if onError != nil {
				onError(info, err)
			}
			continue
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue // extractor found nothing usable, including an image-only skip (§4.F)
		}
		out = append(out, Processed{Info: info, Text: trimmed})
	}
	return out, nil
}

func (p *Processor) extractable(info domain.AttachmentInfo) bool {
	ext := info.Extension
	if ext == "" {
		ext = filepath.Ext(string(info.Name))
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return p.extensions[ext]
}
