package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bathware-labs/stock-reservation-service/internal/admin"
)

type fakeDatabase struct {
	recreated int
	cleared   int
}

func (d *fakeDatabase) Recreate(context.Context) error { d.recreated++; return nil }
func (d *fakeDatabase) Clear(context.Context) error    { d.cleared++; return nil }

func newHandler(db *fakeDatabase) *admin.Handler {
	issuer := admin.NewTokenIssuer("hunter2", "test-secret")
	return admin.NewHandler(slog.New(slog.DiscardHandler), db, issuer)
}

func login(t *testing.T, srv *httptest.Server, password string) (int, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"password": password})
	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestLoginIssuesToken(t *testing.T) {
	srv := httptest.NewServer(newHandler(&fakeDatabase{}).LoginRoutes())
	defer srv.Close()

	status, out := login(t, srv, "hunter2")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["ok"])
	require.NotEmpty(t, out["token"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := httptest.NewServer(newHandler(&fakeDatabase{}).LoginRoutes())
	defer srv.Close()

	status, out := login(t, srv, "wrong")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid credentials", out["error"])
}

func TestLoginRejectsWhenPasswordUnset(t *testing.T) {
	issuer := admin.NewTokenIssuer("", "test-secret")
	h := admin.NewHandler(slog.New(slog.DiscardHandler), &fakeDatabase{}, issuer)
	srv := httptest.NewServer(h.LoginRoutes())
	defer srv.Close()

	// Empty configured password must never match, not even an empty guess.
	status, _ := login(t, srv, "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestDatabaseRoutesRequireToken(t *testing.T) {
	db := &fakeDatabase{}
	h := newHandler(db)
	srv := httptest.NewServer(h.DatabaseRoutes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/create", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, db.recreated)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/create", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, db.recreated)
}

func TestCreateAndClearWithToken(t *testing.T) {
	db := &fakeDatabase{}
	issuer := admin.NewTokenIssuer("hunter2", "test-secret")
	h := admin.NewHandler(slog.New(slog.DiscardHandler), db, issuer)
	srv := httptest.NewServer(h.DatabaseRoutes())
	defer srv.Close()

	token, err := issuer.Issue("hunter2")
	require.NoError(t, err)

	do := func(method, path string) (int, map[string]any) {
		req, err := http.NewRequest(method, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, out := do(http.MethodPost, "/create")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Database created and seeded successfully", out["message"])
	require.Equal(t, 1, db.recreated)

	status, out = do(http.MethodDelete, "/delete")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Database cleared successfully", out["message"])
	require.Equal(t, 1, db.cleared)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := admin.NewTokenIssuer("hunter2", "test-secret")
	other := admin.NewTokenIssuer("hunter2", "other-secret")

	token, err := other.Issue("hunter2")
	require.NoError(t, err)
	require.ErrorIs(t, issuer.Verify(token), admin.ErrInvalidToken)
}
