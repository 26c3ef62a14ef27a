package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-sod/pipecast/internal/logging"
)

// DecodeJSON reads one JSON document of at most maxBytes into v, rejecting
// unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func DecodeErr(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		syntaxErr      *json.SyntaxError
		unmarshalError *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr):
		RespBadRequest(ctx, w, "malformed json at position %v", syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		RespBadRequest(ctx, w, "malformed json")
	case errors.As(err, &unmarshalError):
		RespBadRequest(ctx, w, "invalid value for %v at position %v", unmarshalError.Field, unmarshalError.Offset)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		RespBadRequest(ctx, w, "unknown field %s", fieldName)
	case errors.Is(err, io.EOF):
		RespBadRequest(ctx, w, "body must not be empty")
	case err.Error() == "http: request body too large":
		RespError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		RespBadRequest(ctx, w, "failed to decode json: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// RespError writes {"error": msg} with the given status.
func RespError(ctx context.Context, w http.ResponseWriter, status int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.FromContext(ctx).Debugf("responding %d: %s", status, msg)
	RespJSON(ctx, w, status, errorBody{Error: msg})
}

func RespBadRequest(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	RespError(ctx, w, http.StatusBadRequest, format, args...)
}

func RespInternalError(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	logging.FromContext(ctx).Errorf(format, args...)
	RespJSON(ctx, w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func RespJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Errorf("unable write response: %v", err)
	}
}

// AllowMethod answers 405 unless r uses method.
func AllowMethod(ctx context.Context, w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	RespError(ctx, w, http.StatusMethodNotAllowed, "method %v is not allowed", r.Method)
	return false
}

// RequireJSON answers 415 unless the request body is declared as JSON.
func RequireJSON(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return true
	}
	RespError(ctx, w, http.StatusUnsupportedMediaType, "content-type is not application/json")
	return false
}
