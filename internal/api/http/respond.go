// Package http is the thin HTTP layer over the authoring service and the
// session manager.
package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
)

type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Details   []string `json:"details,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed failures to status codes. Anything untyped is an
// internal error and is logged rather than echoed.
func writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "Internal"})
		return
	}
	status := http.StatusInternalServerError
	switch e.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict, apperr.KindState:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: e.Message, Code: e.Code, Details: e.Details, SessionID: e.SessionID})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("bad json", err.Error())
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
