package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// retryAttempts and retryBaseDelay bound the adapter-layer retry for
// TransientSourceError (§7): network errors and 5xx responses are retried
// with exponential backoff before surfacing as a failure. This supersedes
// github.com/hashicorp/go-retryablehttp — see DESIGN.md for why a
// hand-rolled helper was kept instead of that dependency.
const (
	retryAttempts  = 3
	retryBaseDelay = 200 * time.Millisecond
)

// HTTPSource is a generic JSON/REST ContentSource adapter: it assumes the
// configured baseURL exposes `/spaces`, `/spaces/{key}/pages`,
// `/spaces/{key}/pages/{pageId}/attachments`, and
// `/spaces/{key}/pages/{pageId}/attachments/{name}` endpoints returning the
// shapes below. It deliberately does not know anything Confluence- or
// wiki-specific (§1 Non-goals) — a real deployment fronts it with a shim
// that adapts the actual wiki API to this contract.
type HTTPSource struct {
	client  *http.Client
	baseURL string
}

// NewHTTPSource constructs an HTTPSource against baseURL.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{client: client, baseURL: baseURL}
}

var _ ContentSource = (*HTTPSource)(nil)

func (h *HTTPSource) ListSpaces(ctx context.Context) ([]domain.SpaceKey, error) {
	var out []domain.SpaceKey
	if err := h.getJSON(ctx, "/spaces", &out); err != nil {
		return nil, fmt.Errorf("httpsource: list spaces: %w", err)
	}
	return out, nil
}

func (h *HTTPSource) ListPages(ctx context.Context, space domain.SpaceKey) ([]Page, error) {
	var out []Page
	path := fmt.Sprintf("/spaces/%s/pages", space)
	if err := h.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("httpsource: list pages for space %s: %w", space, err)
	}
	return out, nil
}

func (h *HTTPSource) ListAttachments(ctx context.Context, space domain.SpaceKey, page PageId) ([]domain.AttachmentInfo, error) {
	var out []domain.AttachmentInfo
	path := fmt.Sprintf("/spaces/%s/pages/%s/attachments", space, page)
	if err := h.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("httpsource: list attachments for page %s: %w", page, err)
	}
	return out, nil
}

func (h *HTTPSource) DownloadAttachment(ctx context.Context, space domain.SpaceKey, page PageId, name domain.AttachmentName) ([]byte, error) {
	path := fmt.Sprintf("/spaces/%s/pages/%s/attachments/%s", space, page, name)
	body, err := h.getBytes(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("httpsource: download attachment %s: %w", name, err)
	}
	return body, nil
}

func (h *HTTPSource) ModifiedSince(ctx context.Context, space domain.SpaceKey, since time.Time) ([]Page, error) {
	var out []Page
	path := fmt.Sprintf("/spaces/%s/pages?modifiedSince=%s", space, since.UTC().Format(time.RFC3339))
	if err := h.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("httpsource: modified since for space %s: %w", space, err)
	}
	return out, nil
}

func (h *HTTPSource) Ping(ctx context.Context) error {
	if _, err := h.getBytes(ctx, "/healthz"); err != nil {
		return fmt.Errorf("httpsource: ping: %w", err)
	}
	return nil
}

// getJSON fetches path and decodes it as JSON into out, retrying
// transient failures per getBytes.
func (h *HTTPSource) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := h.getBytes(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getBytes performs a GET against baseURL+path with bounded retry on
// transient (network or 5xx) failures, and maps 404 onto domain.ErrNotFound.
func (h *HTTPSource) getBytes(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(1<<uint(attempt-1))):
			}
		}

		body, retryable, err := h.doOnce(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: exhausted %d attempts: %v", domain.ErrTransientSource, retryAttempts, lastErr)
}

// doOnce performs a single GET, returning (body, retryable, err). Network
// errors and 5xx responses are retryable; 404 maps to domain.ErrNotFound
// (not retryable); any other non-2xx is a non-retryable failure.
func (h *HTTPSource) doOnce(ctx context.Context, path string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error %d from %s", resp.StatusCode, path)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error %d from %s", resp.StatusCode, path)
	}
	return buf.Bytes(), false, nil
}
