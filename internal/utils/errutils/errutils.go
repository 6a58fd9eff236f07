package errutils

import (
	"errors"
	"net/http"
)

// HTTPError implements the error interface along with an HTTP status code.
type HTTPError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

func (h *HTTPError) Error() string {
	if h.Reason == "" {
		return h.Code
	}
	return h.Code + ": " + h.Reason
}

// WithReasonStr returns a copy of the error with the given string as the reason.
func (h *HTTPError) WithReasonStr(reason string) *HTTPError {
	return &HTTPError{Status: h.Status, Code: h.Code, Reason: reason}
}

// WithReasonErr returns a copy of the error with the given error's message as the reason.
func (h *HTTPError) WithReasonErr(reason error) *HTTPError {
	return h.WithReasonStr(reason.Error())
}

// ToHTTPError converts any error value to the HTTPError type.
// Unrecognized errors are converted to the InternalServerError type.
func ToHTTPError(err error) *HTTPError {
	httpError := &HTTPError{}
	if errors.As(err, &httpError) {
		return httpError
	}
	return InternalServerError().WithReasonErr(err)
}

func BadRequest() *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: http.StatusText(http.StatusBadRequest)}
}

func Unauthorized() *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Code: http.StatusText(http.StatusUnauthorized)}
}

func NotFound() *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Code: http.StatusText(http.StatusNotFound)}
}

func RequestTimeout() *HTTPError {
	return &HTTPError{Status: http.StatusRequestTimeout, Code: http.StatusText(http.StatusRequestTimeout)}
}

func InternalServerError() *HTTPError {
	return &HTTPError{Status: http.StatusInternalServerError, Code: http.StatusText(http.StatusInternalServerError)}
}

func BadGateway() *HTTPError {
	return &HTTPError{Status: http.StatusBadGateway, Code: http.StatusText(http.StatusBadGateway)}
}
