package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"stockdash/internal/dashboard"
	"stockdash/internal/indicator"
	"stockdash/internal/llm"
	"stockdash/internal/logger"
	"stockdash/internal/marketdata"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// fail maps a service error to its HTTP status and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= 500 {
		slog.Error("request failed", append(logger.LogWithTrace(r.Context()), "path", r.URL.Path, "error", err)...)
	}
	writeError(w, status, detail)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound, strip(err, dashboard.ErrNotFound)
	case errors.Is(err, dashboard.ErrConflict):
		return http.StatusConflict, strip(err, dashboard.ErrConflict)
	case errors.Is(err, dashboard.ErrInvalid):
		return http.StatusBadRequest, strip(err, dashboard.ErrInvalid)
	case errors.Is(err, marketdata.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, marketdata.ErrNoData):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, indicator.ErrMalformedInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, marketdata.ErrCircuitOpen):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// strip removes the sentinel's own text so the detail reads as the
// human message it was wrapped with.
func strip(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: body: %v", dashboard.ErrInvalid, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", dashboard.ErrInvalid)
	}
	return id, nil
}
