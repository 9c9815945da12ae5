package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

func TestHTTPSourceListSpacesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spaces" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode([]string{"ENG", "HR"})
	}))
	defer srv.Close()

	h := NewHTTPSource(srv.URL, nil)
	got, err := h.ListSpaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.SpaceKey{"ENG", "HR"}, got)
}

func TestHTTPSourceNotFoundIsNonRetryable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := NewHTTPSource(srv.URL, nil)
	_, err := h.ListPages(context.Background(), "MISSING")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "404 should not be retried")
}

func TestHTTPSourceServerErrorRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTPSource(srv.URL, nil)
	_, err := h.ListSpaces(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransientSource)
	assert.EqualValues(t, retryAttempts, atomic.LoadInt32(&calls))
}

func TestHTTPSourceSucceedsAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]string{"ENG"})
	}))
	defer srv.Close()

	h := NewHTTPSource(srv.URL, nil)
	got, err := h.ListSpaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.SpaceKey{"ENG"}, got)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestHTTPSourcePing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTPSource(srv.URL, nil)
	assert.NoError(t, h.Ping(context.Background()))
}
