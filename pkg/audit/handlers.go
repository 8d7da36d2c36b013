package audit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListChangesHandler handles GET /api/audit/v1/changes
// Query params: recordKind, recordId, subcategoryId, actor, changeSetId,
// pageSize, pageToken
func ListChangesHandler(store *ChangeLogStore, cfg *AuditConfig, logger *slog.Logger) http.HandlerFunc {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ChangeLogFilter{
			Actor:       q.Get("actor"),
			ChangeSetID: q.Get("changeSetId"),
		}

		if v := q.Get("recordKind"); v != "" {
			kind, ok := ParseRecordKind(v)
			if !ok {
				writeError(w, http.StatusBadRequest, "bad_request", "recordKind must be current or target")
				return
			}
			filter.RecordKind = kind
		}

		var ok bool
		if filter.RecordID, ok = positiveQueryInt(w, q.Get("recordId"), "recordId"); !ok {
			return
		}
		if filter.SubcategoryID, ok = positiveQueryInt(w, q.Get("subcategoryId"), "subcategoryId"); !ok {
			return
		}

		pageSize := 0
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil {
				pageSize = v
			}
		}

		entries, nextToken, total, err := store.List(r.Context(), filter, cfg.pageSize(pageSize), q.Get("pageToken"))
		if err != nil {
			if errors.Is(err, ErrInvalidPageToken) {
				writeError(w, http.StatusBadRequest, "bad_request", err.Error())
				return
			}
			logger.Error("list change-log entries failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "failed to list change-log entries")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"changes":       entries,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// GetChangeHandler handles GET /api/audit/v1/changes/{changeId}
func GetChangeHandler(store *ChangeLogStore, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "changeId"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "change id must be a positive integer")
			return
		}

		entry, err := store.GetByID(r.Context(), id)
		if err != nil {
			logger.Error("get change-log entry failed", "error", err, "id", id)
			writeError(w, http.StatusInternalServerError, "internal", "failed to get change-log entry")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "not_found", "change-log entry "+strconv.FormatInt(id, 10)+" not found")
			return
		}

		writeJSON(w, http.StatusOK, entry)
	}
}

// positiveQueryInt parses an optional positive id, writing a 400 on failure.
func positiveQueryInt(w http.ResponseWriter, raw, name string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
