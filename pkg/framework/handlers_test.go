package framework

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Store) {
	t.Helper()
	store := newSeededStore(t)
	return Router(store, NewResolver(store, nil, nil), nil), store
}

func TestFormatCodeHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/subcategories/101/code", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var info FormattedInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "ID.AM-02", info.Code)
	assert.Equal(t, StatusOK, info.Status)
}

func TestFormatCodeHandler_NotFoundIsStillOK(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/subcategories/4242/code", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var info FormattedInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, StatusNotFound, info.Status)
}

func TestFormatCodeHandler_BadID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/subcategories/abc/code", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"bad_request"`)
}

func TestFormatCodesHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	body := strings.NewReader(`{"ids": [100, 200, 100, 999]}`)
	req := httptest.NewRequest(http.MethodPost, "/codes:format", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Codes map[string]FormattedInfo `json:"codes"`
		Size  int                      `json:"size"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Size)
	assert.Equal(t, "ID.AM-01", resp.Codes["100"].Code)
	assert.Equal(t, "PR.AA-01", resp.Codes["200"].Code)
	assert.Equal(t, StatusNotFound, resp.Codes["999"].Status)
}

func TestFormatCodesHandler_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/codes:format", strings.NewReader(`{"ids": "x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFormatCodesHandler_BodyTooLarge(t *testing.T) {
	router, _ := newTestRouter(t)

	ids := strings.TrimSuffix(strings.Repeat("100, ", 20000), ", ")
	req := httptest.NewRequest(http.MethodPost, "/codes:format", strings.NewReader(`{"ids": [`+ids+`]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "exceeds")
}

func TestIntegrityHandler(t *testing.T) {
	router, store := newTestRouter(t)

	get := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/integrity", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp
	}

	assert.Equal(t, true, get()["consistent"])

	require.NoError(t, store.db.Create(&Subcategory{ID: 300, Code: "05", CategoryID: 20, FunctionID: 1}).Error)
	resp := get()
	assert.Equal(t, false, resp["consistent"])
	assert.Len(t, resp["inconsistencies"], 1)
}
