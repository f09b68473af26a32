package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"facturalo/ms_cfdi_core/internal/core/fault"
)

// ErrorResponse represents a standardized error response format.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// WriteError writes a standardized JSON error response to the HTTP response writer.
// It sets the appropriate Content-Type header, status code, and encodes the error response.
func WriteError(w http.ResponseWriter, statusCode int, message string, errors []string, log *slog.Logger) {
	response := ErrorResponse{
		Message: message,
		Errors:  errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// If encoding fails, log the error but don't try to write again
		// as the status code has already been written
		if log != nil {
			log.Error("failed to encode error response", "error", err)
		}
	}
}

// WriteFaultError maps a domain error to its HTTP status and writes the
// standardized envelope. Unclassified errors become a 500 with a generic
// message so internals never leak to callers.
func WriteFaultError(w http.ResponseWriter, err error, log *slog.Logger) {
	var validationErr *fault.ValidationError
	var notFoundErr *fault.NotFoundError
	var conflictErr *fault.ConflictError
	var externalErr *fault.ExternalServiceError

	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "Solicitud inválida", []string{validationErr.Error()}, log)
	case errors.As(err, &notFoundErr):
		WriteError(w, http.StatusNotFound, "Recurso no encontrado", []string{notFoundErr.Error()}, log)
	case errors.As(err, &conflictErr):
		WriteError(w, http.StatusConflict, "Conflicto con el estado actual", []string{conflictErr.Error()}, log)
	case errors.As(err, &externalErr):
		if externalErr.Transient {
			WriteError(w, http.StatusServiceUnavailable, "El proveedor de timbrado no está disponible, intente nuevamente", []string{externalErr.Error()}, log)
		} else {
			WriteError(w, http.StatusBadGateway, "El proveedor de timbrado rechazó el documento", []string{externalErr.Error()}, log)
		}
	default:
		if log != nil {
			log.Error("unhandled error", "error", err)
		}
		WriteError(w, http.StatusInternalServerError, "Error interno del servidor", nil, log)
	}
}
