package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/splax/crate/internal/apperror"
)

type errorBody struct {
	Errors []apperror.Message `json:"errors"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends a single error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Errors: []apperror.Message{{Message: msg}}})
}

// respondError renders err in the {errors:[...]} shape. Errors outside the
// apperror taxonomy are logged and hidden behind a 500.
func (r *Router) respondError(w http.ResponseWriter, req *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		r.logger.Error("request failed", "error", err, "method", req.Method, "path", req.URL.Path)
		appErr = apperror.Internal()
	}
	writeJSON(w, appErr.Status, errorBody{Errors: appErr.Messages})
}
