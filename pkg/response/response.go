package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	BAD_REQUEST  ErrCode = "INVALID_INPUT"
	UNAUTHORIZED ErrCode = "UNAUTHORIZED"
	FORBIDDEN    ErrCode = "FORBIDDEN"
	NOT_FOUND    ErrCode = "NOT_FOUND"
	CONFLICT     ErrCode = "CONFLICT"
	UNAVAILABLE  ErrCode = "UNAVAILABLE"
	INTERNAL     ErrCode = "INTERNAL"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("resource is busy, retry")
	ErrInternal     = errors.New("internal error")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

// Invalid wraps ErrInvalidInput with a client-facing reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a client-facing reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Reason strips the "op: op: " prefixes off a wrapped domain error and keeps the sentinel text and detail.
func Reason(err error, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return sentinel.Error()
}

// Classify maps an error to its HTTP status and code. Internal errors never leak detail.
func Classify(err error) (int, ErrCode, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, BAD_REQUEST, Reason(err, ErrInvalidInput)
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, UNAUTHORIZED, ErrUnauthorized.Error()
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, FORBIDDEN, Reason(err, ErrForbidden)
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, NOT_FOUND, Reason(err, ErrNotFound)
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, CONFLICT, Reason(err, ErrConflict)
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, UNAVAILABLE, ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, INTERNAL, "internal error"
	}
}

// WriteError renders err as the JSON error envelope with the matching status.
func WriteError(w http.ResponseWriter, r *http.Request, err error) int {
	status, code, msg := Classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	render.JSON(w, r, Error(string(code), msg))
	return status
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is required", err.Field()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		case "oneof":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be one of [%s]", err.Field(), err.Param()))
		case "datetime":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must match %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}

	return Error(string(BAD_REQUEST), strings.Join(errMsg, ", "))
}
