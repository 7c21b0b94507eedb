package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"BlockDetected", ErrBlockDetected, "Block_Detected"},
		{"NotFound", ErrNotFound, "HTTP_404"},
		{"UnexpectedStatus", ErrUnexpectedStatus, "HTTP_OtherStatus"},
		{"InvalidContent", ErrInvalidContent, "Content_Invalid"},
		{"TransportTimeout", ErrTransportTimeout, "Network_Timeout"},
		{"TransportOther", ErrTransportOther, "Network_Other"},
		{"CheckpointCorrupt", ErrCheckpointCorrupt, "Checkpoint_Corrupt"},
		{"ExtractorItem", ErrExtractorItem, "Content_ExtractorItem"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_RetryFailed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Blocked",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 429", ErrBlockDetected)),
			expected: "RetryFailed_Blocked",
		},
		{
			name:     "Timeout",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, ErrTransportTimeout),
			expected: "RetryFailed_NetworkTimeout",
		},
		{
			name:     "Network",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, ErrTransportOther),
			expected: "RetryFailed_NetworkOther",
		},
		{
			name:     "Bare",
			err:      ErrRetryFailed,
			expected: "RetryFailed_Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_UnexpectedStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"401", fmt.Errorf("%w: status 401", ErrUnexpectedStatus), "HTTP_401"},
		{"500", fmt.Errorf("%w: status 500", ErrUnexpectedStatus), "HTTP_5xx"},
		{"302", fmt.Errorf("%w: status 302", ErrUnexpectedStatus), "HTTP_OtherStatus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContextCanceled", context.Canceled, "System_ContextCanceled"},
		{"ContextDeadlineExceeded", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_NetworkStrings(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Timeout", errors.New("connection timeout occurred"), "Network_TimeoutGeneric"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_Unknown(t *testing.T) {
	err := errors.New("some completely unknown error")
	result := CategorizeError(err)
	if result != "Unknown" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, result, "Unknown")
	}
}

// --- IsTimeout Tests ---

type fakeNetError struct{ timeout bool }

func (e fakeNetError) Error() string   { return "fake net error" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

var _ net.Error = fakeNetError{}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"net timeout", fakeNetError{timeout: true}, true},
		{"net other", fakeNetError{timeout: false}, false},
		{"canceled", context.Canceled, false},
		{"refused", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// --- Hash / ID Tests ---

func TestCalculateStringSHA256(t *testing.T) {
	// Known SHA-256 of the empty string
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := CalculateStringSHA256(""); got != want {
		t.Errorf("CalculateStringSHA256(\"\") = %q, want %q", got, want)
	}
	if CalculateStringSHA256("a") == CalculateStringSHA256("b") {
		t.Error("different inputs produced the same hash")
	}
}

func TestHotelID(t *testing.T) {
	id := HotelID("https://example.com/reviews/hotel_a/")
	if !strings.HasPrefix(id, "hotel_") {
		t.Errorf("HotelID prefix missing: %q", id)
	}
	if len(id) != len("hotel_")+12 {
		t.Errorf("HotelID length = %d, want %d", len(id), len("hotel_")+12)
	}
	if id != HotelID("https://example.com/reviews/hotel_a/") {
		t.Error("HotelID is not stable for the same URL")
	}
	if id == HotelID("https://example.com/reviews/hotel_b/") {
		t.Error("HotelID collided for different URLs")
	}
}

func TestReviewID(t *testing.T) {
	a := ReviewID("hotel_x", "ab", "c")
	b := ReviewID("hotel_x", "a", "bc")
	if a == b {
		t.Error("ReviewID must separate parts")
	}
	if !strings.HasPrefix(a, "hotel_x_review_") {
		t.Errorf("ReviewID prefix missing: %q", a)
	}
	if a != ReviewID("hotel_x", "ab", "c") {
		t.Error("ReviewID is not stable")
	}
}
