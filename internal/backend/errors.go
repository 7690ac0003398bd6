package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNotFound matches any StatusError carrying a 404.
var ErrNotFound = errors.New("backend: not found")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// newStatusError extracts the backend's error text from {"detail": ...} or
// {"error": ...} bodies, falling back to the raw body.
func newStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case len(payload.Detail) > 0:
			var detail string
			if json.Unmarshal(payload.Detail, &detail) == nil {
				msg = detail
			} else {
				msg = string(payload.Detail)
			}
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
