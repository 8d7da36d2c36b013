package assessment

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)
	srv := httptest.NewServer(Router(env.current, env.target))
	t.Cleanup(srv.Close)
	return env, srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandlers_LatestPlaceholder(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/current/subcategories/42/latest", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["id"])
	assert.Equal(t, float64(42), body["subcategoryId"])
	assert.Equal(t, float64(0), body["priority"])
	assert.Equal(t, PlaceholderText, body["justification"])
	assert.Equal(t, PlaceholderText, body["evidenceText"])
}

func TestHandlers_BatchThenEdit(t *testing.T) {
	env, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/current/records:batch",
		`{"items": [{"subcategoryId": 42, "priority": 3, "level": "2", "justification": "ok"}, {"subcategoryId": 0}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["submitted"])
	assert.Equal(t, float64(1), body["savedCount"])
	assert.Equal(t, float64(1), body["errorCount"])
	ids := body["savedIds"].([]any)
	require.Len(t, ids, 1)
	id := int64(ids[0].(float64))

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/current/subcategories/42/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(id), body["id"])
	assert.Equal(t, float64(2), body["level"])
	assert.Equal(t, float64(1), body["revision"])

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/current/records/"+itoa(id),
		`{"subcategoryId": 42, "priority": 5, "level": 2, "justification": "ok", "revision": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["changedFieldCount"])
	assert.Equal(t, []any{"priority"}, body["changedFields"])
	assert.Equal(t, float64(2), body["revision"])

	entries := env.changeLog(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "3", entries[0].OldValue)
	assert.Equal(t, "5", entries[0].NewValue)

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/current/records/"+itoa(id),
		`{"subcategoryId": 42, "priority": 6, "revision": 1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["error"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/current/subcategories/42/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["size"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/current/records/"+itoa(id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["priority"])
}

func TestHandlers_TargetAliases(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/future/records:batch",
		`{"items": [{"subcategoryId": 7, "artifactText": "  SBOM  "}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["savedCount"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/target/subcategories/7/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SBOM", body["artifactText"])
	assert.Nil(t, body["policyText"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/current/subcategories/7/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["id"])
}

func TestHandlers_Errors(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"non-numeric subcategory", http.MethodGet, "/current/subcategories/abc/latest", "", http.StatusBadRequest, "invalid_input"},
		{"zero subcategory", http.MethodGet, "/target/subcategories/0/history", "", http.StatusBadRequest, "invalid_input"},
		{"missing record", http.MethodGet, "/current/records/99", "", http.StatusNotFound, "not_found"},
		{"malformed body", http.MethodPost, "/current/records:batch", `{"items": [`, http.StatusBadRequest, "invalid_input"},
		{"empty batch", http.MethodPost, "/current/records:batch", `{"items": []}`, http.StatusBadRequest, "invalid_input"},
		{"all items invalid", http.MethodPost, "/target/records:batch", `{"items": [{"subcategoryId": -1}]}`, http.StatusBadRequest, "invalid_input"},
		{"all items malformed", http.MethodPost, "/target/records:batch", `{"items": [{"subcategoryId": "x"}]}`, http.StatusBadRequest, "invalid_input"},
		{"edit missing record", http.MethodPut, "/current/records/99", `{"subcategoryId": 1}`, http.StatusNotFound, "not_found"},
		{"edit bad id", http.MethodPut, "/current/records/x", `{"subcategoryId": 1}`, http.StatusBadRequest, "invalid_input"},
		{"edit zero id", http.MethodPut, "/current/records/0", `{"subcategoryId": 1}`, http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHandlers_AllInvalidListsItemErrors(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/current/records:batch",
		`{"items": [{"subcategoryId": 0}, {"subcategoryId": -4}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	items := body["errors"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, float64(1), items[1].(map[string]any)["index"])
	assert.Equal(t, float64(-4), items[1].(map[string]any)["subcategoryId"])
}

func TestHandlers_MalformedItemDoesNotBlockBatch(t *testing.T) {
	tests := []struct {
		name    string
		item    string
		wantMsg string
	}{
		{"string id", `{"subcategoryId": "abc"}`, "subcategoryId must be an integer"},
		{"fractional id", `{"subcategoryId": 1.5}`, "subcategoryId must be an integer"},
		{"numeric text", `{"subcategoryId": 6, "notes": 12}`, "notes must be a string"},
		{"not an object", `7`, "item must be a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, srv := newTestServer(t)

			resp, body := doJSON(t, http.MethodPost, srv.URL+"/current/records:batch",
				`{"items": [`+tt.item+`, {"subcategoryId": 5, "priority": 2}]}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, float64(1), body["savedCount"])
			assert.Equal(t, float64(1), body["errorCount"])

			items := body["errors"].([]any)
			require.Len(t, items, 1)
			item := items[0].(map[string]any)
			assert.Equal(t, float64(0), item["index"])
			assert.Equal(t, tt.wantMsg, item["message"])

			assert.Equal(t, int64(1), env.count(t, &CurrentStateRecord{}))
		})
	}
}

func TestHandlers_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.current.cfg = &AssessmentConfig{MaxBodyBytes: 32}
	srv := httptest.NewServer(Router(env.current, env.target))
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/current/records:batch",
		`{"items": [{"subcategoryId": 1, "notes": "`+strings.Repeat("x", 64)+`"}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "invalid_input", body["error"])
}

func TestHandlers_StorageFailure(t *testing.T) {
	current := NewCurrentStatePipeline(failingRepo[CurrentStateRecord]{err: errors.New("disk I/O error")}, nil, nil)
	target := NewTargetStatePipeline(failingRepo[TargetStateRecord]{err: errors.New("disk I/O error")}, nil, nil)
	srv := httptest.NewServer(Router(current, target))
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/current/subcategories/1/latest", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal", body["error"])
	assert.NotContains(t, body["message"], "disk")
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
