package alertapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/haul/internal/alert"
	"github.com/linnemanlabs/haul/internal/authmw"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string             `json:"error"`
	Fields []alert.FieldError `json:"fields,omitempty"`
}

// validator is implemented by every request body type.
type validator interface {
	Validate() error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing useful to do if the client went away
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Unclassified errors are
// logged and reported as 500 without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *alert.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Errors})
		return
	case errors.Is(err, alert.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	case errors.Is(err, alert.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	case errors.Is(err, alert.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	case errors.Is(err, alert.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, alert.ErrUpstream) {
		a.logger.Warn(r.Context(), "upstream failure", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "routing service unavailable"})
		return
	}
	a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst validator) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return alert.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return alert.NewValidationError("body", "must contain a single JSON object")
	}
	return dst.Validate()
}

// identity returns the caller's user ID or writes 401.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := authmw.IdentityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
		return "", false
	}
	return id, true
}
