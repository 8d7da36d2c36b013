package assessment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetLatestHandler handles GET /api/assessment/v1/{kind}/subcategories/{subcategoryId}/latest
// A subcategory without saved state yields a placeholder record with id 0.
func GetLatestHandler[R any, P payload[R]](p *Pipeline[R, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "subcategoryId")
		if !ok {
			return
		}

		rec, err := p.GetLatest(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// HistoryHandler handles GET /api/assessment/v1/{kind}/subcategories/{subcategoryId}/history
func HistoryHandler[R any, P payload[R]](p *Pipeline[R, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "subcategoryId")
		if !ok {
			return
		}

		rows, err := p.History(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"records": rows,
			"size":    len(rows),
		})
	}
}

// GetRecordHandler handles GET /api/assessment/v1/{kind}/records/{id}
func GetRecordHandler[R any, P payload[R]](p *Pipeline[R, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		rec, err := p.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type batchRequest struct {
	Items []json.RawMessage `json:"items"`
}

// SaveBatchHandler handles POST /api/assessment/v1/{kind}/records:batch
// Body: {"items": [...]}. Partial failures are reported with 200.
func SaveBatchHandler[R any, P payload[R]](p *Pipeline[R, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if !decodeBody(w, r, p.cfg.MaxBodyBytes, &req) {
			return
		}

		result, err := p.SaveBatchJSON(r.Context(), req.Items)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// EditHandler handles PUT /api/assessment/v1/{kind}/records/{id}
// The path id addresses the record; a non-zero body id must match it.
func EditHandler[R any, P payload[R]](p *Pipeline[R, P]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var in P
		if !decodeBody(w, r, p.cfg.MaxBodyBytes, &in) {
			return
		}

		result, err := p.Edit(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("%s must be an integer", param))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_input",
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeServiceError maps pipeline errors to status codes. Storage failures
// are already logged by the pipeline.
func writeServiceError(w http.ResponseWriter, err error) {
	var batchErr *BatchError
	switch {
	case errors.As(err, &batchErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_input",
			"message": batchErr.Error(),
			"errors":  batchErr.Items,
		})
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal storage error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
