package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

func TestSeverityClassification(t *testing.T) {
	cases := []struct {
		piiType string
		want    domain.Severity
	}{
		{"SSN", domain.SeverityHigh},
		{"ssn", domain.SeverityHigh},
		{"credit_card", domain.SeverityHigh},
		{"EMAIL", domain.SeverityMedium},
		{"phone", domain.SeverityMedium},
		{"zip_code", domain.SeverityLow},
		{"SOMETHING_UNKNOWN", domain.SeverityLow},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, Severity(c.piiType), "Severity(%q)", c.piiType)
	}
}

func TestRiskBuckets(t *testing.T) {
	cases := []struct {
		name   string
		counts map[string]int
		want   domain.RiskLevel
	}{
		{"empty", map[string]int{}, domain.RiskAucun},
		{"low single", map[string]int{"ZIP_CODE": 1}, domain.RiskFaible},
		{"unknown type weight one", map[string]int{"MYSTERY": 3}, domain.RiskFaible},
		{"medium several", map[string]int{"EMAIL": 4}, domain.RiskMoyen}, // 4*5=20
		{"high one", map[string]int{"SSN": 3}, domain.RiskEleve},         // 3*10=30
		{"high many", map[string]int{"SSN": 10}, domain.RiskCritique},    // 100
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Risk(c.counts))
		})
	}
}

func TestSummarize(t *testing.T) {
	entities := []domain.PiiEntity{
		{PiiType: "EMAIL"}, {PiiType: "EMAIL"}, {PiiType: "SSN"},
	}
	got := Summarize(entities)
	assert.Equal(t, 2, got["EMAIL"])
	assert.Equal(t, 1, got["SSN"])
	assert.Len(t, got, 2)
}
