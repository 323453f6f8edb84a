package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mandate-authority/mandate-authority/internal/apierr"
)

// timeFormat is the wire format every timestamp field uses.
const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

// writeJSON writes data as a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders err as spec §7's {statusCode, error, message}
// envelope. Any error that is not already an *apierr.Error is treated
// as an unexpected internal failure and given a generic, client-safe
// message — its detail belongs in the server log, not the response
// body.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.HTTPStatus(), apiErr.ToEnvelope())
		return
	}
	writeJSON(w, http.StatusInternalServerError, apierr.Envelope{
		StatusCode: http.StatusInternalServerError,
		Error:      "INTERNAL",
		Message:    "internal server error",
	})
}

// readJSON decodes the request body into v, wrapping decode failures
// as a client-safe INVALID_INPUT error.
func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.Wrap(apierr.KindInvalidInput, "malformed JSON body", err)
	}
	return nil
}
