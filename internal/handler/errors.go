package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/service"
	"scanventory-api/pkg/apierror"
	"scanventory-api/pkg/response"
)

// maxBodyBytes bounds request bodies; item payloads are tiny.
const maxBodyBytes = 64 << 10

// writeError translates service errors into API errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]apierror.FieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = apierror.FieldError{Field: f.Field, Message: f.Message}
		}
		response.Error(w, apierror.ValidationError("Validation failed", details...))
	case errors.Is(err, service.ErrItemNotFound):
		response.Error(w, apierror.NotFound("Item not found"))
	case errors.Is(err, service.ErrAlertNotFound):
		response.Error(w, apierror.NotFound("Alert not found"))
	case errors.Is(err, service.ErrOutOfStock):
		response.Error(w, apierror.Conflict("Item is already out of stock"))
	case errors.Is(err, cache.ErrLockTimeout):
		response.Error(w, apierror.ServiceUnavailable("Item is busy, try again"))
	default:
		log.Printf("[Handler] %s %s failed: %v", r.Method, r.URL.Path, err)
		response.Error(w, apierror.InternalError(""))
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		response.Error(w, apierror.BadRequest(msg))
		return false
	}
	return true
}
