package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsRecoverableError reports whether an upstream error is worth retrying on
// the next sync cycle (timeouts, throttling, 5xx) as opposed to a permanent
// failure such as bad credentials or a malformed catalog.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	recoverableErrors := []string{
		"provider API returned status 429",
		"provider API returned status 5",
		"connection reset",
		"connection refused",
	}

	msg := err.Error()
	for _, recoverable := range recoverableErrors {
		if strings.Contains(msg, recoverable) {
			return true
		}
	}
	return false
}
