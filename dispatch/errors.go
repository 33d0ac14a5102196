package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
)

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       []byte
}

// NewStatusError describes a completed non-2xx exchange.
func NewStatusError(resp *Response) *StatusError {
	return &StatusError{
		Method:     resp.Call.Method,
		Endpoint:   resp.Call.Endpoint,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	if d := e.Detail(); d != "" {
		msg += ": " + d
	}
	return msg
}

// Is maps statuses onto the error taxonomy so callers can use errors.Is.
func (e *StatusError) Is(target error) bool {
	switch target {
	case apperrors.ErrAuthExpired:
		return e.StatusCode == http.StatusUnauthorized
	case apperrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case apperrors.ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// Detail extracts the service's human readable message. The service answers
// with {"detail": ...}, {"error": ...} or a map of field errors.
func (e *StatusError) Detail() string {
	if len(e.Body) == 0 {
		return ""
	}
	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	for _, k := range []string{"detail", "error"} {
		if s, ok := body[k].(string); ok {
			return s
		}
	}

	var fields []string
	for k, v := range body {
		switch msgs := v.(type) {
		case []any:
			for _, m := range msgs {
				if s, ok := m.(string); ok {
					fields = append(fields, k+": "+s)
				}
			}
		case string:
			fields = append(fields, k+": "+msgs)
		}
	}
	sort.Strings(fields)
	return strings.Join(fields, "; ")
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if apperrors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
