package idempotency_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bathware-labs/stock-reservation-service/pkg/idempotency"
)

type fakeChecker struct {
	seen map[string]bool
	err  error
}

func (c *fakeChecker) Seen(_ context.Context, key string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.seen[key] {
		return true, nil
	}
	c.seen[key] = true
	return false, nil
}

func newServer(checker idempotency.Checker) (*httptest.Server, *int) {
	hits := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	mw := idempotency.Middleware(slog.New(slog.DiscardHandler), checker)
	return httptest.NewServer(mw(next)), &hits
}

func post(t *testing.T, url, key string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestDuplicateKeyRejected(t *testing.T) {
	srv, hits := newServer(&fakeChecker{seen: map[string]bool{}})
	defer srv.Close()

	require.Equal(t, http.StatusOK, post(t, srv.URL, "abc-123"))
	require.Equal(t, http.StatusConflict, post(t, srv.URL, "abc-123"))
	require.Equal(t, 1, *hits)

	// A fresh key passes.
	require.Equal(t, http.StatusOK, post(t, srv.URL, "def-456"))
	require.Equal(t, 2, *hits)
}

func TestMissingKeyPassesThrough(t *testing.T) {
	srv, hits := newServer(&fakeChecker{seen: map[string]bool{}})
	defer srv.Close()

	require.Equal(t, http.StatusOK, post(t, srv.URL, ""))
	require.Equal(t, http.StatusOK, post(t, srv.URL, ""))
	require.Equal(t, 2, *hits)
}

func TestReadsAreNeverDeduped(t *testing.T) {
	srv, hits := newServer(&fakeChecker{seen: map[string]bool{"abc-123": true}})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Idempotency-Key", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, *hits)
}

func TestCheckerFailureFailsOpen(t *testing.T) {
	srv, hits := newServer(&fakeChecker{err: errors.New("redis down")})
	defer srv.Close()

	require.Equal(t, http.StatusOK, post(t, srv.URL, "abc-123"))
	require.Equal(t, http.StatusOK, post(t, srv.URL, "abc-123"))
	require.Equal(t, 2, *hits)
}
