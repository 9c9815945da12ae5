// Package detector declares PiiDetector, the pluggable entity-detection
// capability interface (§1 "out of scope: PII detection model"), plus a
// small regex-based reference implementation used by tests and local runs.
package detector

import (
	"context"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// PiiDetector finds PII entities in a block of plain text. Implementations
// are expected to be stateless and safe for concurrent use.
type PiiDetector interface {
	// Detect returns every entity found in text. An empty result is not an
	// error; it means no PII was found.
	Detect(ctx context.Context, text string) ([]domain.PiiEntity, error)
}
