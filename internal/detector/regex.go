package detector

import (
	"context"
	"regexp"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// pattern pairs a compiled matcher with the PII type/label it reports.
type pattern struct {
	re         *regexp.Regexp
	piiType    string
	typeLabel  string
	confidence float64
}

// defaultPatterns is a small, deliberately conservative starter set; real
// deployments inject a model-backed PiiDetector instead (§1).
var defaultPatterns = []pattern{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "EMAIL", "Email Address", 0.95},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "SSN", "Social Security Number", 0.9},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`), "CREDIT_CARD", "Credit Card Number", 0.75},
	{regexp.MustCompile(`\b\+?\d{1,2}[ .\-]?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`), "PHONE_NUMBER", "Phone Number", 0.7},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "IP_ADDRESS", "IP Address", 0.6},
	{regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`), "ZIP_CODE", "Zip Code", 0.4},
}

// RegexDetector is a reference PiiDetector built on a fixed list of
// regular expressions. It exists so the orchestrator and handler layers
// have something real to run against in tests and local development;
// production deployments inject a model-backed PiiDetector instead.
type RegexDetector struct {
	patterns []pattern
}

// NewRegexDetector returns a RegexDetector using the built-in pattern set.
func NewRegexDetector() *RegexDetector {
	return &RegexDetector{patterns: defaultPatterns}
}

func (d *RegexDetector) Detect(ctx context.Context, text string) ([]domain.PiiEntity, error) {
	var out []domain.PiiEntity
	for _, p := range d.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			out = append(out, domain.PiiEntity{
				PiiType:       p.piiType,
				PiiTypeLabel:  p.typeLabel,
				StartPosition: loc[0],
				EndPosition:   loc[1],
				Confidence:    p.confidence,
				SensitiveValue: text[loc[0]:loc[1]],
			})
		}
	}
	return out, nil
}
