package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	maxJSONBody  = 1 << 20
	maxMediaBody = 10 << 20
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 or 413 on
// failure. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
