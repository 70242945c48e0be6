package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "throttled",
			err:      errors.New("provider API returned status 429"),
			expected: true,
		},
		{
			name:     "server error",
			err:      fmt.Errorf("openrouter: %w", errors.New("provider API returned status 503")),
			expected: true,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			expected: true,
		},
		{
			name:     "unauthorized",
			err:      errors.New("provider API returned status 401"),
			expected: false,
		},
		{
			name:     "malformed catalog",
			err:      errors.New("invalid catalog payload"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverableError(tt.err); got != tt.expected {
				t.Errorf("IsRecoverableError() = %v, want %v", got, tt.expected)
			}
		})
	}
}
