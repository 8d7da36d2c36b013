package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csfprofile/profile-registry/pkg/authz"
)

func TestOriginMiddleware(t *testing.T) {
	var got Origin
	handler := middleware.RequestID(
		authz.IdentityMiddleware()(
			OriginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = OriginFromContext(r.Context())
			}))))

	req := httptest.NewRequest(http.MethodPut, "/api/assessment/v1/current/records/1", nil)
	req.RemoteAddr = "10.1.2.3:51234"
	req.Header.Set("X-Remote-User", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, "10.1.2.3", got.SourceAddress)
	assert.NotEmpty(t, got.RequestID)
}

func TestOriginMiddleware_AnonymousIsSystem(t *testing.T) {
	var got Origin
	handler := OriginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = OriginFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, authz.SystemActor, got.Actor)
}

func TestOriginFromContext_Defaults(t *testing.T) {
	assert.Equal(t, authz.SystemActor, OriginFromContext(context.Background()).Actor)

	ctx := WithOrigin(context.Background(), Origin{SourceAddress: "::1"})
	o := OriginFromContext(ctx)
	assert.Equal(t, authz.SystemActor, o.Actor)
	assert.Equal(t, "::1", o.SourceAddress)

	ctx = authz.WithIdentity(context.Background(), authz.Identity{User: "carol"})
	assert.Equal(t, "carol", OriginFromContext(ctx).Actor)
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestMutationLogMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *AuditConfig
		method    string
		path      string
		status    int
		wantLines int
		wantKind  string
		wantOut   string
	}{
		{
			name:      "batch save logged",
			cfg:       &AuditConfig{Enabled: true, LogFailures: true},
			method:    http.MethodPost,
			path:      "/api/assessment/v1/target/records:batch",
			status:    http.StatusOK,
			wantLines: 1,
			wantKind:  "FUTURE",
			wantOut:   "success",
		},
		{
			name:      "conflict logged",
			cfg:       &AuditConfig{Enabled: true, LogFailures: true},
			method:    http.MethodPut,
			path:      "/api/assessment/v1/current/records/4",
			status:    http.StatusConflict,
			wantLines: 1,
			wantKind:  "CURRENT",
			wantOut:   "conflict",
		},
		{
			name:   "failure skipped when LogFailures is false",
			cfg:    &AuditConfig{Enabled: true},
			method: http.MethodPut,
			path:   "/api/assessment/v1/current/records/4",
			status: http.StatusBadRequest,
		},
		{
			name:   "GET skipped",
			cfg:    &AuditConfig{Enabled: true, LogFailures: true},
			method: http.MethodGet,
			path:   "/api/assessment/v1/current/subcategories/1/latest",
			status: http.StatusOK,
		},
		{
			name:   "disabled",
			cfg:    &AuditConfig{Enabled: false},
			method: http.MethodPost,
			path:   "/api/assessment/v1/current/records:batch",
			status: http.StatusOK,
		},
		{
			name:   "nil config",
			method: http.MethodPost,
			path:   "/api/assessment/v1/current/records:batch",
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := MutationLogMiddleware(tt.cfg, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rr.Code)
			lines := logLines(t, &buf)
			require.Len(t, lines, tt.wantLines)
			if tt.wantLines > 0 {
				assert.Equal(t, tt.wantKind, lines[0]["recordKind"])
				assert.Equal(t, tt.wantOut, lines[0]["outcome"])
				assert.Equal(t, authz.SystemActor, lines[0]["actor"])
			}
		})
	}
}
