package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

func TestMemorySourceListSpacesSorted(t *testing.T) {
	m := NewMemorySource()
	m.AddSpace("ZETA")
	m.AddSpace("ALPHA")
	m.AddSpace("MID")

	got, err := m.ListSpaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.SpaceKey{"ALPHA", "MID", "ZETA"}, got)
}

func TestMemorySourceUnknownSpaceErrors(t *testing.T) {
	m := NewMemorySource()
	_, err := m.ListPages(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = m.ListAttachments(context.Background(), "NOPE", "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemorySourceAttachmentsAndDownload(t *testing.T) {
	m := NewMemorySource()
	m.AddSpace("ENG", Page{PageId: "p1", Title: "Page One"})
	info := domain.AttachmentInfo{Name: "report.pdf", Extension: "pdf", MimeType: "application/pdf"}
	m.AddAttachment("ENG", "p1", info, []byte("%PDF content"))

	attachments, err := m.ListAttachments(context.Background(), "ENG", "p1")
	require.NoError(t, err)
	assert.Len(t, attachments, 1)

	data, err := m.DownloadAttachment(context.Background(), "ENG", "p1", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF content", string(data))
}

func TestMemorySourceFailListPagesAndPing(t *testing.T) {
	m := NewMemorySource()
	m.AddSpace("ENG", Page{PageId: "p1"})
	injected := errors.New("boom")
	m.FailListPages("ENG", injected)

	_, err := m.ListPages(context.Background(), "ENG")
	assert.Equal(t, injected, err)

	assert.NoError(t, m.Ping(context.Background()), "Ping should succeed by default")
	m.FailPing(injected)
	assert.Equal(t, injected, m.Ping(context.Background()))
}
