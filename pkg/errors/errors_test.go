package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWorkerErrorMessage(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NetworkError("fetch failed", cause)

	want := "[NETWORK] fetch failed: connection refused"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("Expected error to unwrap to its cause")
	}

	bare := ConfigError("cache name is required", nil)
	if bare.Error() != "[CONFIG] cache name is required" {
		t.Errorf("Unexpected message: %q", bare.Error())
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("activate: %w", StorageError("list generations", nil))

	if !IsType(wrapped, ErrStorage) {
		t.Error("Expected wrapped error to be ErrStorage")
	}
	if IsType(wrapped, ErrNetwork) {
		t.Error("Expected wrapped error not to be ErrNetwork")
	}
	if IsType(nil, ErrStorage) {
		t.Error("nil is never typed")
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", NetworkError("offline", nil), true},
		{"storage", StorageError("quota", nil), false},
		{"message", MessageError("no reply port", nil), false},
		{"plain", stderrors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	err := StorageError("delete generation", nil).WithContext("generation", "v0")
	if err.Context["generation"] != "v0" {
		t.Errorf("Expected context generation=v0, got %v", err.Context["generation"])
	}
}
