package survey

import (
	"fmt"
	"net/http"
	"time"
)

// The fetch error taxonomy. Callers branch on these with errors.As rather
// than matching message text, so retry and UI copy decisions survive
// message wording changes.

// TimeoutError reports that the per-request deadline fired before a
// response arrived.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("survey API request exceeded %s timeout", e.Timeout)
}

// NetworkError reports a transport-level failure (DNS, connection refused,
// reset) before an HTTP status was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("survey API request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response status.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("survey API returned status %d %s", e.Status, e.StatusText)
}

// DataShapeError reports a response body that parses as JSON but lacks the
// expected structure.
type DataShapeError struct {
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("unexpected survey API response shape: %s", e.Reason)
}

func newHTTPError(status int) *HTTPError {
	return &HTTPError{Status: status, StatusText: http.StatusText(status)}
}
