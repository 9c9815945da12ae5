package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// ErrSpaceNotFound is returned by MemorySource when a space has no
// registered page list; it wraps domain.ErrNotFound (§7 NotFoundError).
var ErrSpaceNotFound = fmt.Errorf("source: space not found: %w", domain.ErrNotFound)

// spaceData holds one space's pages and per-page attachments/bytes.
type spaceData struct {
	pages       []Page
	attachments map[PageId][]domain.AttachmentInfo
	bytes       map[attachmentKey][]byte
}

type attachmentKey struct {
	page PageId
	name domain.AttachmentName
}

// MemorySource is an in-memory ContentSource used by tests and local runs.
// It is not a wiki client — it is the reference double the spec calls for
// as an "external collaborator, contract only".
type MemorySource struct {
	spaces map[domain.SpaceKey]*spaceData
	order  []domain.SpaceKey
	fail   map[domain.SpaceKey]error // ListPages failures, injected by tests
	pingErr error
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		spaces: make(map[domain.SpaceKey]*spaceData),
		fail:   make(map[domain.SpaceKey]error),
	}
}

// AddSpace registers a space with an explicit page order.
func (m *MemorySource) AddSpace(key domain.SpaceKey, pages ...Page) {
	if _, ok := m.spaces[key]; !ok {
		m.order = append(m.order, key)
	}
	m.spaces[key] = &spaceData{
		pages:       pages,
		attachments: make(map[PageId][]domain.AttachmentInfo),
		bytes:       make(map[attachmentKey][]byte),
	}
}

// AddAttachment registers one attachment and its bytes for a page.
func (m *MemorySource) AddAttachment(space domain.SpaceKey, page PageId, info domain.AttachmentInfo, data []byte) {
	sd := m.spaces[space]
	if sd == nil {
		return
	}
	sd.attachments[page] = append(sd.attachments[page], info)
	sd.bytes[attachmentKey{page: page, name: info.Name}] = data
}

// FailListPages injects a ListPages failure for a space (§7 FatalEnumerationError).
func (m *MemorySource) FailListPages(space domain.SpaceKey, err error) {
	m.fail[space] = err
}

// FailPing injects a Ping failure (§6 Health).
func (m *MemorySource) FailPing(err error) {
	m.pingErr = err
}

func (m *MemorySource) ListSpaces(ctx context.Context) ([]domain.SpaceKey, error) {
	out := make([]domain.SpaceKey, len(m.order))
	copy(out, m.order)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemorySource) ListPages(ctx context.Context, space domain.SpaceKey) ([]Page, error) {
	if err, ok := m.fail[space]; ok {
		return nil, err
	}
	sd, ok := m.spaces[space]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	out := make([]Page, len(sd.pages))
	copy(out, sd.pages)
	return out, nil
}

func (m *MemorySource) ListAttachments(ctx context.Context, space domain.SpaceKey, page PageId) ([]domain.AttachmentInfo, error) {
	sd, ok := m.spaces[space]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	return sd.attachments[page], nil
}

func (m *MemorySource) DownloadAttachment(ctx context.Context, space domain.SpaceKey, page PageId, name domain.AttachmentName) ([]byte, error) {
	sd, ok := m.spaces[space]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	return sd.bytes[attachmentKey{page: page, name: name}], nil
}

// ModifiedSince keeps no modification times, so it ignores since and
// returns every page of the space, as ListPages does.
func (m *MemorySource) ModifiedSince(ctx context.Context, space domain.SpaceKey, since time.Time) ([]Page, error) {
	return m.ListPages(ctx, space)
}

func (m *MemorySource) Ping(ctx context.Context) error {
	return m.pingErr
}
