package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// TransportError is returned for responses with an unexpected status.
type TransportError struct {
	Context    string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP Error: %s: %d %s", e.Context, e.StatusCode, e.Body)
}

// CheckAndThrow returns a *TransportError unless resp has status 200 or one
// of the listed exceptions.
func CheckAndThrow(resp *Response, context string, exceptions ...int) error {
	if resp == nil {
		return &TransportError{Context: context, Body: "no response"}
	}
	if resp.StatusCode == http.StatusOK || slices.Contains(exceptions, resp.StatusCode) {
		return nil
	}
	body := strings.TrimSpace(string(resp.Body))
	if body == "" {
		body = http.StatusText(resp.StatusCode)
	}
	return &TransportError{Context: context, StatusCode: resp.StatusCode, Body: body}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
