// Package masking implements §4.A: building "[TYPE]" tokens and extracting
// masked/sensitive line-windows around a PII span, with multi-entity
// awareness and word-boundary-safe truncation.
//
// Grounded on the teacher's small-pure-package style (severity, progress)
// rather than any one teacher file — the algorithm itself is new to this
// domain, but the "never panic, return the zero value on any malformed
// input" discipline mirrors discovery-service's parseUUID/mustGetOrgID
// helpers, which convert all edge cases into an error/nil return instead of
// a panic.
package masking

import (
	"strings"
	"unicode"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// DefaultMaxLength and DefaultSideLength are the §4.A / §6 configuration
// defaults.
const (
	DefaultMaxLength  = 200
	DefaultSideLength = 80
)

// Options carries the configurable truncation parameters (§6 piiContext.*).
type Options struct {
	MaxLength  int
	SideLength int
}

// DefaultOptions returns the §6 default configuration.
func DefaultOptions() Options {
	return Options{MaxLength: DefaultMaxLength, SideLength: DefaultSideLength}
}

func (o Options) normalized() Options {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.SideLength < 0 {
		o.SideLength = 0
	}
	// Guardrail for maxLength - sideLength*2 < 0 (§9 open question 3): clamp
	// the half-window so the centered span never requests more room than
	// maxLength can hold.
	if o.SideLength*2 > o.MaxLength {
		o.SideLength = o.MaxLength / 2
	}
	return o
}

// Mask returns the "[TYPE]" token for a PII type. A null/blank/"null" type
// yields "[UNKNOWN]" (§4.A).
func Mask(piiType string) string {
	t := strings.TrimSpace(piiType)
	if t == "" || strings.EqualFold(t, "null") {
		return "[UNKNOWN]"
	}
	return "[" + strings.ToUpper(t) + "]"
}

// entitySpan is the subset of domain.PiiEntity this package needs, so
// callers can pass siblings without constructing full PiiEntity values.
type entitySpan struct {
	start int
	end   int
	piiType string
}

// Extractor builds masked/sensitive context windows for a fixed source text.
type Extractor struct {
	opts Options
}

// New constructs an Extractor with the given options (defaults applied).
func New(opts Options) *Extractor {
	return &Extractor{opts: opts.normalized()}
}

// ExtractMasked returns the masked, truncated line-window around [start,end],
// with "[TYPE]" tokens spliced in for the main entity and any entities in
// otherEntities that also intersect the same line. Returns nil (via ok=false
// semantics expressed as empty string + false) on any invalid input.
func (e *Extractor) ExtractMasked(source string, start, end int, piiType string, otherEntities []domain.PiiEntity) (string, bool) {
	return e.extract(source, start, end, piiType, otherEntities, true)
}

// ExtractSensitive returns the unmasked, truncated line-window around
// [start,end], with no token substitution (the real values are left as-is
// so the caller can encrypt them before persisting).
func (e *Extractor) ExtractSensitive(source string, start, end int) (string, bool) {
	return e.extract(source, start, end, "", nil, false)
}

func (e *Extractor) extract(source string, start, end int, piiType string, otherEntities []domain.PiiEntity, masked bool) (string, bool) {
	if source == "" || strings.TrimSpace(source) == "" {
		return "", false
	}
	n := len(source)
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > n || end < 0 || start > end {
		return "", false
	}

	lineStart, lineEnd := lineBounds(source, start, end)

	spans := []entitySpan{{start: start, end: end, piiType: piiType}}
	for _, o := range otherEntities {
		if o.StartPosition >= lineStart && o.EndPosition <= lineEnd && !(o.StartPosition == start && o.EndPosition == end) {
			spans = append(spans, entitySpan{start: o.StartPosition, end: o.EndPosition, piiType: o.PiiType})
		}
	}
	sortSpans(spans)

	line := source[lineStart:lineEnd]
	lineOffset := lineStart

	var built strings.Builder
	cursor := lineOffset
	mainPosInBuilt := -1
	for _, sp := range spans {
		if sp.start < cursor {
			continue // overlapping span already covered
		}
		built.WriteString(source[cursor:sp.start])
		if sp.start == start && sp.end == end {
			mainPosInBuilt = built.Len()
		}
		if masked {
			built.WriteString(Mask(sp.piiType))
		} else {
			built.WriteString(source[sp.start:sp.end])
		}
		cursor = sp.end
	}
	if cursor < lineOffset+len(line) {
		built.WriteString(source[cursor : lineOffset+len(line)])
	}
	_ = line

	result := built.String()
	if mainPosInBuilt < 0 {
		mainPosInBuilt = 0
	}

	windowed, truncatedLeft, truncatedRight := window(result, mainPosInBuilt, e.opts.SideLength, e.opts.MaxLength)
	windowed = collapseWhitespace(windowed)
	if truncatedLeft {
		windowed = "…" + windowed
	}
	if truncatedRight {
		windowed = windowed + "…"
	}
	return windowed, true
}

// lineBounds finds the start/end offsets of the line containing [start,end],
// where a "line" is delimited by '\n'. The source is used as given: neither
// this package nor its callers in this module detect or strip markup, so
// HTML/XML tags in a page body stay in the window text.
func lineBounds(source string, start, end int) (int, int) {
	lineStart := strings.LastIndexByte(source[:start], '\n')
	if lineStart < 0 {
		lineStart = 0
	} else {
		lineStart++
	}
	rel := strings.IndexByte(source[end:], '\n')
	var lineEnd int
	if rel < 0 {
		lineEnd = len(source)
	} else {
		lineEnd = end + rel
	}
	return lineStart, lineEnd
}

func sortSpans(spans []entitySpan) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
}

// window centers a [maxLength]-bounded substring of s around position
// center, expanding symmetrically by sideLength then extending to the
// nearest whitespace without exceeding maxLength, per §4.A step 4.
func window(s string, center, sideLength, maxLength int) (string, bool, bool) {
	n := len(s)
	if n <= maxLength {
		return s, false, false
	}
	if center < 0 {
		center = 0
	}
	if center > n {
		center = n
	}

	left := center - sideLength
	right := center + sideLength
	if left < 0 {
		right += -left
		left = 0
	}
	if right > n {
		left -= right - n
		right = n
		if left < 0 {
			left = 0
		}
	}

	// Extend outward to the nearest whitespace while the total length stays
	// within maxLength; never split a word if that would exceed maxLength.
	for left > 0 && !unicode.IsSpace(rune(s[left-1])) && right-left < maxLength {
		left--
	}
	for right < n && !unicode.IsSpace(rune(s[right])) && right-left < maxLength {
		right++
	}
	if right-left > maxLength {
		// Extension overshot; clamp back from the center outward.
		over := (right - left) - maxLength
		// Prefer trimming from whichever side is currently larger.
		for over > 0 {
			if center-left >= right-center && left < center {
				left++
			} else if right > center {
				right--
			} else {
				break
			}
			over--
		}
	}

	truncatedLeft := left > 0
	truncatedRight := right < n
	return s[left:right], truncatedLeft, truncatedRight
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Enrich fills maskedContext/sensitiveContext on any entity in result that
// lacks them, preserving existing values, and is idempotent (§4.A, §8
// property 4). Any panic inside is recovered and the input is returned
// unchanged, per "all failures are contained".
func Enrich(extractor *Extractor, result domain.ScanResult) (out domain.ScanResult) {
	out = result
	defer func() {
		if recover() != nil {
			out = result
		}
	}()

	entities := make([]domain.PiiEntity, len(result.DetectedEntities))
	copy(entities, result.DetectedEntities)

	for i := range entities {
		e := entities[i]
		if e.MaskedContext == "" {
			if ctx, ok := extractor.ExtractMasked(result.SourceContent, e.StartPosition, e.EndPosition, e.PiiType, entities); ok {
				entities[i].MaskedContext = ctx
			}
		}
		if e.SensitiveContext == "" {
			if ctx, ok := extractor.ExtractSensitive(result.SourceContent, e.StartPosition, e.EndPosition); ok {
				entities[i].SensitiveContext = ctx
			}
		}
	}
	out.DetectedEntities = entities
	return out
}
