package masking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

func TestMask(t *testing.T) {
	cases := map[string]string{
		"email": "[EMAIL]",
		" ssn ": "[SSN]",
		"":      "[UNKNOWN]",
		"null":  "[UNKNOWN]",
		"NULL":  "[UNKNOWN]",
	}
	for in, want := range cases {
		assert.Equalf(t, want, Mask(in), "Mask(%q)", in)
	}
}

func TestExtractMaskedReplacesSpan(t *testing.T) {
	e := New(DefaultOptions())
	source := "Contact me at alice@example.com for details."
	start := strings.Index(source, "alice@example.com")
	end := start + len("alice@example.com")

	got, ok := e.ExtractMasked(source, start, end, "EMAIL", nil)
	require.True(t, ok)
	assert.Contains(t, got, "[EMAIL]")
	assert.NotContains(t, got, "alice@example.com")
}

func TestExtractSensitivePreservesValue(t *testing.T) {
	e := New(DefaultOptions())
	source := "Contact me at alice@example.com for details."
	start := strings.Index(source, "alice@example.com")
	end := start + len("alice@example.com")

	got, ok := e.ExtractSensitive(source, start, end)
	require.True(t, ok)
	assert.Contains(t, got, "alice@example.com")
}

func TestExtractInvalidSpanIsSafe(t *testing.T) {
	e := New(DefaultOptions())
	_, ok := e.ExtractMasked("", 0, 0, "EMAIL", nil)
	assert.False(t, ok, "empty source should yield ok=false")

	_, ok = e.ExtractMasked("short", 3, 1, "EMAIL", nil)
	assert.False(t, ok, "start > end should yield ok=false")

	_, ok = e.ExtractMasked("short", -5, 2, "EMAIL", nil)
	assert.True(t, ok, "negative start should be clamped, not rejected")
}

func TestWindowTruncatesLongLines(t *testing.T) {
	e := New(Options{MaxLength: 40, SideLength: 10})
	long := strings.Repeat("word ", 50) + "SECRET" + strings.Repeat(" word", 50)
	start := strings.Index(long, "SECRET")
	end := start + len("SECRET")

	got, ok := e.ExtractMasked(long, start, end, "API_KEY", nil)
	require.True(t, ok)
	assert.LessOrEqualf(t, len(got), 64, "window %q was not bounded near maxLength", got)
	assert.Contains(t, got, "[API_KEY]")
}

func TestEnrichIsIdempotent(t *testing.T) {
	e := New(DefaultOptions())
	result := domain.ScanResult{
		SourceContent: "My SSN is 123-45-6789, please keep it safe.",
		DetectedEntities: []domain.PiiEntity{
			{PiiType: "SSN", StartPosition: 10, EndPosition: 21, SensitiveValue: "123-45-6789"},
		},
	}

	once := Enrich(e, result)
	twice := Enrich(e, once)

	require.Len(t, once.DetectedEntities, 1)
	require.Len(t, twice.DetectedEntities, 1)
	assert.Equal(t, once.DetectedEntities[0].MaskedContext, twice.DetectedEntities[0].MaskedContext)
	assert.Equal(t, once.DetectedEntities[0].SensitiveContext, twice.DetectedEntities[0].SensitiveContext)
	assert.NotEmpty(t, once.DetectedEntities[0].MaskedContext)
}

func TestEnrichDoesNotOverwriteExisting(t *testing.T) {
	e := New(DefaultOptions())
	result := domain.ScanResult{
		SourceContent: "irrelevant by now",
		DetectedEntities: []domain.PiiEntity{
			{PiiType: "SSN", StartPosition: 0, EndPosition: 3, MaskedContext: "already set"},
		},
	}
	out := Enrich(e, result)
	assert.Equal(t, "already set", out.DetectedEntities[0].MaskedContext)
}
