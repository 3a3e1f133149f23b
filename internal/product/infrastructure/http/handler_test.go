package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bathware-labs/stock-reservation-service/internal/product/application"
	producthttp "github.com/bathware-labs/stock-reservation-service/internal/product/infrastructure/http"
	"github.com/bathware-labs/stock-reservation-service/internal/storage/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.Open(slog.New(slog.DiscardHandler), ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.SeedIfEmpty(context.Background()))

	log := slog.New(slog.DiscardHandler)
	handler := producthttp.NewHandler(log, application.NewService(log, store))
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestListSeededProducts(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 4)
	require.Equal(t, "BTH-0001", list[0]["sku"])
}

func TestGetProduct(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodGet, srv.URL+"/BTH-0002", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Wall-Mounted Shower Set", out["name"])
	require.Equal(t, float64(18), out["quantity"])

	status, out = doJSON(t, http.MethodGet, srv.URL+"/NOPE", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, out["ok"])
}

func TestCreateProduct(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodPost, srv.URL+"/", `{"sku":"BTH-0005","name":"Towel Rail 60cm","category":"Accessory","price":"690","quantity":40}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["ok"])
	require.Equal(t, float64(5), out["id"])

	// Duplicate SKU.
	status, out = doJSON(t, http.MethodPost, srv.URL+"/", `{"sku":"BTH-0005","name":"Towel Rail 60cm"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, out["ok"])
}

func TestCreateProductValidation(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/", `{"name":"No SKU"}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/", `{"sku":"X","quantity":-1}`)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateProductPartial(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodPut, srv.URL+"/BTH-0001", `{"quantity":30}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), out["changes"])

	status, out = doJSON(t, http.MethodGet, srv.URL+"/BTH-0001", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(30), out["quantity"])
	require.Equal(t, "Single-Handle Basin Faucet", out["name"])
}

func TestUpdateUnknownProduct(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodPut, srv.URL+"/NOPE", `{"quantity":30}`)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, out["ok"])
}

func TestDeleteProduct(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodDelete, srv.URL+"/BTH-0004", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "BTH-0004", out["deleted"])

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/BTH-0004", "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestBulkUpsert(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodPost, srv.URL+"/bulk", `[
		{"sku":"BTH-0001","name":"Single-Handle Basin Faucet","category":"Faucet","price":"1190","quantity":50},
		{"name":"No SKU"},
		{"sku":"BTH-0010","name":"Corner Shelf","category":"Accessory","price":"390","quantity":12}
	]`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["ok"])
	require.Equal(t, float64(2), out["successCount"])
	require.Equal(t, float64(1), out["errorCount"])
	require.Equal(t, "Imported 2 products, 1 errors", out["message"])

	status, got := doJSON(t, http.MethodGet, srv.URL+"/BTH-0001", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(50), got["quantity"])
}

func TestBulkUpsertRejectsNonArray(t *testing.T) {
	srv := newTestServer(t)

	status, out := doJSON(t, http.MethodPost, srv.URL+"/bulk", `{"sku":"BTH-0001"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "products must be a non-empty array", out["error"])
}

func TestExportProductsCSV(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "products.csv")

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "ID,SKU,Name,Category,Price,Quantity", lines[0])
	require.Len(t, lines, 5)
	require.Equal(t, "1,BTH-0001,Single-Handle Basin Faucet,Faucet,1290,25", lines[1])
}
