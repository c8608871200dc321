package dataset

import "fmt"

// ExhaustedRetriesError wraps the last fetch error after every attempt and
// the stale-cache fallback have failed. Only then does a fetch failure
// reach the UI layer.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("survey data unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }
