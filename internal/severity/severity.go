// Package severity implements §4.B: mapping a detection type to a severity
// bucket and rolling per-space detection counts up into a risk level.
//
// Grounded on discovery-service's dictionary_service.go pattern of small,
// dependency-free pure functions kept next to the types they classify.
package severity

import "github.com/arc-self/wikipii-scan/internal/domain"

// highTypes and mediumTypes enumerate the detection types considered high
// or medium severity; anything else defaults to low. The exact type
// catalogue belongs to the injected PiiDetector — this table only needs to
// cover the labels it is known to emit.
var highTypes = map[string]bool{
	"SSN": true, "NATIONAL_ID": true, "PASSPORT": true, "CREDIT_CARD": true,
	"BANK_ACCOUNT": true, "MEDICAL_RECORD": true, "PASSWORD": true,
	"API_KEY": true, "PRIVATE_KEY": true,
}

var mediumTypes = map[string]bool{
	"EMAIL": true, "PHONE": true, "PHONE_NUMBER": true, "ADDRESS": true, "DATE_OF_BIRTH": true,
	"IP_ADDRESS": true, "USERNAME": true,
}

// weights matches §4.B: high=10, medium=5, low=2, unknown=1.
const (
	weightHigh    = 10
	weightMedium  = 5
	weightLow     = 2
	weightUnknown = 1
)

// Severity classifies a single detection type. Matching is case-insensitive.
func Severity(piiType string) domain.Severity {
	t := normalize(piiType)
	if highTypes[t] {
		return domain.SeverityHigh
	}
	if mediumTypes[t] {
		return domain.SeverityMedium
	}
	return domain.SeverityLow
}

func normalize(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			out[i] = c - 32
		} else {
			out[i] = c
		}
	}
	return string(out)
}

func weight(piiType string) int {
	switch Severity(piiType) {
	case domain.SeverityHigh:
		return weightHigh
	case domain.SeverityMedium:
		return weightMedium
	case domain.SeverityLow:
		// A recognised-but-low type still counts as "low", distinct from an
		// entirely unrecognised type which only counts as "unknown".
		if _, known := knownLow(piiType); known {
			return weightLow
		}
		return weightUnknown
	default:
		return weightUnknown
	}
}

// lowTypes lists types explicitly classified as low severity rather than
// merely falling through to the default.
var lowTypes = map[string]bool{
	"ZIP_CODE": true, "COUNTRY": true, "LANGUAGE": true, "TIMEZONE": true,
}

func knownLow(piiType string) (domain.Severity, bool) {
	if lowTypes[normalize(piiType)] {
		return domain.SeverityLow, true
	}
	return "", false
}

// Risk rolls up a per-type detection count map into a RiskLevel per the
// weighted-sum buckets in §4.B: 0→Aucun, 1-4→Faible, 5-20→Moyen,
// 21-49→Élevé, >=50→Critique.
func Risk(counts map[string]int) domain.RiskLevel {
	sum := 0
	for piiType, count := range counts {
		sum += weight(piiType) * count
	}
	switch {
	case sum == 0:
		return domain.RiskAucun
	case sum <= 4:
		return domain.RiskFaible
	case sum <= 20:
		return domain.RiskMoyen
	case sum <= 49:
		return domain.RiskEleve
	default:
		return domain.RiskCritique
	}
}

// Summarize builds the type→count statistics map from a list of entities,
// the payload shape required by ScanResult.Summary (§3).
func Summarize(entities []domain.PiiEntity) map[string]int {
	out := make(map[string]int, len(entities))
	for _, e := range entities {
		out[e.PiiType]++
	}
	return out
}
