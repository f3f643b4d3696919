package httpapi

import (
	"encoding/json"
	"net/http"

	"crashd/domain/apperr"

	"github.com/sirupsen/logrus"
)

var kindStatus = map[apperr.Kind]int{
	apperr.Unauthenticated:    http.StatusUnauthorized,
	apperr.PermissionDenied:   http.StatusForbidden,
	apperr.InvalidArgument:    http.StatusBadRequest,
	apperr.FailedPrecondition: http.StatusPreconditionFailed,
	apperr.AlreadyExists:      http.StatusConflict,
	apperr.NotFound:           http.StatusNotFound,
	apperr.InsufficientFunds:  http.StatusUnprocessableEntity,
	apperr.DailyLimitExceeded: http.StatusUnprocessableEntity,
	apperr.ResourceExhausted:  http.StatusTooManyRequests,
	apperr.DeadlineExceeded:   http.StatusGatewayTimeout,
	apperr.Internal:           http.StatusInternalServerError,
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.WithError(err).Error("Failed to encode response")
		}
	}
}

// writeError translates an error chain into a status code and a client-safe
// body. Internal causes are logged, never surfaced.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}

	var body errorBody
	body.Error.Code = string(kind)
	body.Error.Message = apperr.MessageOf(err)
	writeJSON(w, status, body)
}

// decodeJSON parses a request body into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "malformed request body", err)
	}
	return nil
}
