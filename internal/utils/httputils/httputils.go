package httputils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shivanshkc/signon/internal/utils/errutils"
)

// Write writes the given data as the HTTP response using the given writer.
func Write(w http.ResponseWriter, status int, headers map[string]string, body any) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "err", err)
	}
}

// WriteErr writes the given error as the HTTP response using the given writer.
func WriteErr(w http.ResponseWriter, err error) {
	httpError := errutils.ToHTTPError(err)
	Write(w, httpError.Status, nil, httpError)
}

// Is2xx returns true if the given status code is in the 2xx range.
func Is2xx(code int) bool {
	return code >= 200 && code < 300
}

// RoundTripFunc is used to override the client transport if needed.
// This func implements http.RoundTripper interface.
type RoundTripFunc func(req *http.Request) *http.Response

// RoundTrip will execute the round tripper func.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

// RoundTripperJSON returns a round tripper that delivers the given response as the response body.
func RoundTripperJSON(response any) (RoundTripFunc, error) {
	var marshalled []byte
	var err error

	switch asserted := response.(type) {
	case []byte:
		marshalled = asserted
	case string:
		marshalled = []byte(asserted)
	default:
		marshalled, err = json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("error in json.Marshal call: %w", err)
		}
	}

	return func(req *http.Request) *http.Response {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(marshalled)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}
	}, nil
}
