// Package source declares ContentSource, the capability interface for the
// remote wiki corpus (§1 "out of scope: source wiki client"). It holds the
// contract, a minimal in-memory reference implementation (used by tests
// and local development) and HTTPSource, a generic JSON-over-HTTP adapter;
// there is no wiki-specific API client.
package source

import (
	"context"
	"time"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// Page is one wiki page as returned by the content source.
type Page struct {
	PageId PageId
	Title  string
	Url    string
	Body   string
}

// PageId is re-exported locally to avoid importing domain in call sites
// that only need the source package; it is identical to domain.PageId.
type PageId = domain.PageId

// ContentSource lists and fetches spaces, pages, and attachments.
type ContentSource interface {
	// ListSpaces returns every space key known to the source.
	ListSpaces(ctx context.Context) ([]domain.SpaceKey, error)

	// ListPages returns every page in a space, in a stable declared order.
	ListPages(ctx context.Context, space domain.SpaceKey) ([]Page, error)

	// ListAttachments returns attachment metadata for a page, in declared order.
	ListAttachments(ctx context.Context, space domain.SpaceKey, page PageId) ([]domain.AttachmentInfo, error)

	// DownloadAttachment fetches the raw bytes of one attachment. An empty
	// slice (not an error) signals "nothing downloadable" per §4.F step 2.
	DownloadAttachment(ctx context.Context, space domain.SpaceKey, page PageId, name domain.AttachmentName) ([]byte, error)

	// ModifiedSince returns pages modified at or after since, for incremental
	// scanning use cases layered on top of the orchestrator.
	ModifiedSince(ctx context.Context, space domain.SpaceKey, since time.Time) ([]Page, error)

	// Ping checks connectivity to the source (§6 Health).
	Ping(ctx context.Context) error
}

// PageURL assembles the canonical view URL for a page given a base URL,
// matching §8 E8: trailing slash on baseUrl is normalized away before
// appending the fixed path.
func PageURL(baseUrl string, page PageId) string {
	trimmed := baseUrl
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed + "/pages/viewpage.action?pageId=" + string(page)
}
