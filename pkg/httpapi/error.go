package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WriteServiceError maps engine error codes to HTTP statuses.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var be *serrors.BaseError
	if !errors.As(err, &be) {
		return WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", nil)
	}
	return WriteError(w, StatusFor(be.Code), be.Code, be.Message, be.Meta)
}

func StatusFor(code string) int {
	switch code {
	case serrors.CodeNotFound:
		return http.StatusNotFound
	case serrors.CodeBadRequest:
		return http.StatusBadRequest
	case serrors.CodeDependencyConflict:
		return http.StatusConflict
	case serrors.CodeNoActor:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
