package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Bounds of a bulk format request.
const (
	maxFormatIDs       = 1000
	maxFormatBodyBytes = 64 << 10
)

// FormatCodeHandler handles GET /api/framework/v1/subcategories/{subcategoryId}/code
func FormatCodeHandler(resolver *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "subcategoryId"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "subcategory id must be an integer")
			return
		}

		info := resolver.FormatMany(r.Context(), []int64{id})[id]
		writeJSON(w, http.StatusOK, info)
	}
}

type formatCodesRequest struct {
	IDs []int64 `json:"ids"`
}

// FormatCodesHandler handles POST /api/framework/v1/codes:format
// Body: {"ids": [1, 2, 3]}. The response holds one entry per distinct id.
func FormatCodesHandler(resolver *Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req formatCodesRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxFormatBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "bad_request",
					fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if len(req.IDs) > maxFormatIDs {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Sprintf("at most %d ids can be formatted per request", maxFormatIDs))
			return
		}

		codes := resolver.FormatMany(r.Context(), req.IDs)
		writeJSON(w, http.StatusOK, map[string]any{
			"codes": codes,
			"size":  len(codes),
		})
	}
}

// IntegrityHandler handles GET /api/framework/v1/integrity
func IntegrityHandler(store *Store, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		problems, err := store.FindInconsistent(r.Context())
		if err != nil {
			logger.Error("hierarchy integrity check failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "failed to check hierarchy integrity")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"consistent":      len(problems) == 0,
			"inconsistencies": problems,
		})
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
