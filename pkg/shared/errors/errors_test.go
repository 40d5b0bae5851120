package errors

import (
	"fmt"
	"testing"
)

func TestOperationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name: "full error",
			err: &OperationError{
				Operation: "upsert content row",
				Component: "contentcache",
				Resource:  "slack:#eng",
				Cause:     fmt.Errorf("connection timeout"),
			},
			expected: "failed to upsert content row, component: contentcache, resource: slack:#eng, cause: connection timeout",
		},
		{
			name: "minimal error",
			err: &OperationError{
				Operation: "parse config",
				Cause:     fmt.Errorf("invalid yaml"),
			},
			expected: "failed to parse config, cause: invalid yaml",
		},
		{
			name: "no cause",
			err: &OperationError{
				Operation: "validate destination",
				Component: "validator",
			},
			expected: "failed to validate destination, component: validator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("OperationError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &OperationError{Operation: "test", Cause: cause}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := &OperationError{Operation: "test"}
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() with no cause = %v, want nil", unwrapped)
	}
}

func TestFailedTo(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := FailedTo("connect to redis", cause)
	want := "failed to connect to redis, cause: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("FailedTo() = %q, want %q", got, want)
	}
}

func TestFailedToOn(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := FailedToOn("sync resource", "platformsync", "slack:#eng", cause)
	want := "failed to sync resource, component: platformsync, resource: slack:#eng, cause: boom"
	if got := err.Error(); got != want {
		t.Errorf("FailedToOn() = %q, want %q", got, want)
	}
}
