package fetcher

import "fmt"

// UpstreamError is a failed or timed out provider catalog call.
type UpstreamError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s: timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
