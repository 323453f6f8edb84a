package apierr

import "net/http"

// httpStatus maps each Kind to the status code spec §7 prescribes.
func httpStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindInvalidContext, KindInvalidPattern:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden, KindAgentInactive, KindAgentKilled:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindInconsistentSettlement:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the {statusCode, error, message} JSON body spec §6/§7
// describes for every non-2xx response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// ToEnvelope renders e as the wire envelope an HTTP transport writes.
func (e *Error) ToEnvelope() Envelope {
	return Envelope{
		StatusCode: e.HTTPStatus(),
		Error:      string(e.Kind),
		Message:    e.Message,
	}
}
