package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/domain"
	"github.com/arc-self/wikipii-scan/internal/repository/db"
)

func TestAuthorize(t *testing.T) {
	q := db.NewFakeQuerier()
	allowed := New(q, Policy{AllowSecretReveal: true}, time.Hour, zap.NewNop())
	assert.NoError(t, allowed.Authorize())

	denied := New(q, Policy{AllowSecretReveal: false}, time.Hour, zap.NewNop())
	err := denied.Authorize()
	assert.ErrorIs(t, err, ErrRevealDenied)
	assert.ErrorIs(t, err, domain.ErrPolicyDenied)
}

func TestRecordAccessUsesConfiguredRetention(t *testing.T) {
	q := db.NewFakeQuerier()
	r := New(q, Policy{}, 2*time.Hour, zap.NewNop())
	ctx := context.Background()

	before := time.Now().UTC()
	require.NoError(t, r.RecordAccess(ctx, "scan1", "api.reveal", 3))
	audits := q.Audits()
	require.Len(t, audits, 1)
	got := audits[0]
	assert.Equal(t, "scan1", got.ScanID)
	assert.Equal(t, "api.reveal", got.Purpose)
	assert.EqualValues(t, 3, got.PiiCount)

	wantRetention := before.Add(2 * time.Hour)
	assert.WithinDuration(t, wantRetention, got.RetentionUntil, time.Second)
}

func TestNewDefaultsRetentionWhenZero(t *testing.T) {
	q := db.NewFakeQuerier()
	r := New(q, Policy{}, 0, zap.NewNop())
	assert.Equal(t, DefaultRetention, r.retention, "expected DefaultRetention fallback")
}

func TestPurgeExpiredRemovesOnlyExpired(t *testing.T) {
	q := db.NewFakeQuerier()
	r := New(q, Policy{}, time.Hour, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	q.InsertPiiAccessAudit(ctx, db.InsertPiiAccessAuditParams{
		ScanID: "expired", Purpose: "x", PiiCount: 1, AccessedAt: now.Add(-48 * time.Hour), RetentionUntil: now.Add(-time.Hour),
	})
	q.InsertPiiAccessAudit(ctx, db.InsertPiiAccessAuditParams{
		ScanID: "fresh", Purpose: "x", PiiCount: 1, AccessedAt: now, RetentionUntil: now.Add(24 * time.Hour),
	})

	removed, err := r.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	remaining := q.Audits()
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].ScanID)
}
