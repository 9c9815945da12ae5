package eventstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/cipher"
	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
)

type recordingAudit struct {
	calls []int
}

func (a *recordingAudit) RecordAccess(ctx context.Context, scanId domain.ScanId, purpose string, piiCount int) error {
	a.calls = append(a.calls, piiCount)
	return nil
}

func newStore(aud AuditRecorder) (*Store, *db.FakeQuerier) {
	q := db.NewFakeQuerier()
	return New(q, nil, cipher.NoopCipher{}, aud, zap.NewNop()), q
}

func TestAppendAssignsDenseMonotonicSeq(t *testing.T) {
	s, _ := newStore(nil)
	ctx := context.Background()

	e1, err := s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventStart})
	require.NoError(t, err)
	e2, err := s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventPageStart})
	require.NoError(t, err)
	assert.EqualValues(t, 1, e1.EventSeq)
	assert.EqualValues(t, 2, e2.EventSeq)

	// A second scan's sequence is independent of the first.
	o1, err := s.Append(ctx, domain.ScanEvent{ScanId: "scan2", Type: domain.EventStart})
	require.NoError(t, err)
	assert.EqualValues(t, 1, o1.EventSeq, "expected a fresh scan to start at seq 1")
}

func TestListByScanAndTypesFilters(t *testing.T) {
	s, _ := newStore(nil)
	ctx := context.Background()
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventStart})
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventPageStart})
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventComplete})

	got, err := s.ListByScanAndTypes(ctx, "scan1", []domain.EventType{domain.EventStart, domain.EventComplete})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventStart, got[0].Type)
	assert.Equal(t, domain.EventComplete, got[1].Type)
}

func TestListSinceReturnsOnlyLaterEvents(t *testing.T) {
	s, _ := newStore(nil)
	ctx := context.Background()
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventStart})
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventPageStart})
	s.Append(ctx, domain.ScanEvent{ScanId: "scan1", Type: domain.EventComplete})

	got, err := s.ListSince(ctx, "scan1", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Greaterf(t, e.EventSeq, int64(1), "ListSince leaked an event at or before the cursor")
	}
}

func TestListItemEventsDecryptedAndAudited(t *testing.T) {
	key := make([]byte, 32)
	aead, err := cipher.NewAEADCipher(key)
	require.NoError(t, err)
	q := db.NewFakeQuerier()
	aud := &recordingAudit{}
	s := New(q, nil, aead, aud, zap.NewNop())
	ctx := context.Background()

	encryptedValue, err := aead.Encrypt(ctx, "123-45-6789")
	require.NoError(t, err)
	result := domain.ScanResult{
		ScanId: "scan1", PageId: "p1",
		DetectedEntities: []domain.PiiEntity{
			{PiiType: "SSN", SensitiveValue: encryptedValue},
		},
	}
	_, err = s.Append(ctx, domain.ScanEvent{ScanId: "scan1", PageId: ptrPageId("p1"), Type: domain.EventItem, Payload: result})
	require.NoError(t, err)

	otherPageResult := domain.ScanResult{
		ScanId: "scan1", PageId: "p2",
		DetectedEntities: []domain.PiiEntity{
			{PiiType: "SSN", SensitiveValue: encryptedValue},
			{PiiType: "SSN", SensitiveValue: encryptedValue},
		},
	}
	_, err = s.Append(ctx, domain.ScanEvent{ScanId: "scan1", PageId: ptrPageId("p2"), Type: domain.EventItem, Payload: otherPageResult})
	require.NoError(t, err)

	results, err := s.ListItemEventsDecrypted(ctx, "scan1", "p1", "test.reveal")
	require.NoError(t, err)
	require.Len(t, results, 1, "expected only the requested page's item events")
	assert.Equal(t, "123-45-6789", results[0].DetectedEntities[0].SensitiveValue)
	require.Len(t, aud.calls, 1)
	assert.Equal(t, 1, aud.calls[0], "piiCount must be scoped to the requested page, not scan-wide")
}

func ptrPageId(p domain.PageId) *domain.PageId { return &p }
