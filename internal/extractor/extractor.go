// Package extractor declares TextExtractor (§1 "out of scope: text
// extractor"), the bytes→plain-text capability interface, and implements
// the required image-only heuristic contract from §4.F so any concrete
// extractor implementation can share it.
package extractor

import (
	"context"
	"strings"
	"unicode"
)

// TextExtractor converts attachment bytes into plain text, or reports that
// the content should be skipped (e.g. image-only).
type TextExtractor interface {
	// Extract returns the extracted plain text, or "" if nothing usable was
	// found (including the image-only heuristic skip, §4.F).
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// IsImageOnly implements the required heuristic contract from §4.F:
// text is treated as image-only (skip) when it is blank, shorter than 50
// chars, has no spaces in a long string, has printable-character ratio
// < 0.8, alphanumeric ratio below threshold, or special-character ratio
// > 0.4.
func IsImageOnly(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if len(t) < 50 {
		return true
	}
	if len(t) > 200 && !strings.Contains(t, " ") {
		return true
	}

	var printable, alnum, special, total int
	for _, r := range t {
		total++
		if unicode.IsPrint(r) {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		} else if !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return true
	}
	printableRatio := float64(printable) / float64(total)
	alnumRatio := float64(alnum) / float64(total)
	specialRatio := float64(special) / float64(total)

	const alnumThreshold = 0.5
	if printableRatio < 0.8 {
		return true
	}
	if alnumRatio < alnumThreshold {
		return true
	}
	if specialRatio > 0.4 {
		return true
	}
	return false
}

// CleanAndTrim applies the image-only heuristic and returns ("", false) when
// the text should be skipped, or (trimmed, true) otherwise.
func CleanAndTrim(text string) (string, bool) {
	if IsImageOnly(text) {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// PlainTextExtractor is the reference TextExtractor for text/* and
// application/json attachments (and those with no MIME type): it passes
// bytes through as-is, applying the
// image-only heuristic (§4.F) before returning. A real deployment wires a
// collaborator that also handles PDF/DOCX/etc (§1 out of scope).
type PlainTextExtractor struct{}

// NewPlainTextExtractor returns a PlainTextExtractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract implements TextExtractor for plain-text-shaped MIME types.
func (PlainTextExtractor) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		mimeType == "":
		cleaned, ok := CleanAndTrim(string(data))
		if !ok {
			return "", nil
		}
		return cleaned, nil
	default:
		return "", nil
	}
}
