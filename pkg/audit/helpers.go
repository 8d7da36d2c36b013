package audit

import (
	"net"
	"net/http"
	"strings"
)

// isMutation returns true for requests that can change assessment state.
func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isHealthEndpoint returns true for health-check paths.
func isHealthEndpoint(path string) bool {
	switch path {
	case "/livez", "/readyz", "/healthz":
		return true
	}
	return false
}

// extractRecordKind returns the kind segment of an assessment path.
// For /api/assessment/v1/target/records/7 it returns FUTURE.
func extractRecordKind(path string) RecordKind {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		if p == "assessment" && i+2 < len(parts) {
			kind, _ := ParseRecordKind(parts[i+2])
			return kind
		}
	}
	return ""
}

// extractAction returns a readable name for a mutation.
func extractAction(method, path string) string {
	if strings.HasSuffix(path, ":batch") {
		return "batch-save"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut:
		return "edit"
	case http.MethodPatch:
		return "patch"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// sourceAddress strips the port from a remote address. After chi's RealIP
// middleware RemoteAddr may already be a bare IP.
func sourceAddress(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// outcomeFromStatus maps HTTP status codes to request outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusConflict:
		return "conflict"
	case code >= 400 && code < 500:
		return "rejected"
	default:
		return "failure"
	}
}
