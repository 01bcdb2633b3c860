package fetch

import (
	"fmt"
	"net/http"

	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// StatusError reports a response whose status code is 400 or above.
// The response body has already been drained and closed.
type StatusError struct {
	StatusCode int
	Status     string // e.g. "404 Not Found"
	URL        string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%v: status %s for %s", e.Unwrap(), status, e.URL)
}

// Unwrap maps the status code onto the matching HTTP sentinel so callers can use errors.Is
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return utils.ErrClientHTTPError
	case e.StatusCode >= 500:
		return utils.ErrServerHTTPError
	default:
		return utils.ErrOtherHTTPError
	}
}

func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if resp.Request != nil && resp.Request.URL != nil {
		se.URL = resp.Request.URL.String()
	}
	return se
}
