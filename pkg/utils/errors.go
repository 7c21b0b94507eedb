package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrTransportTimeout  = errors.New("transport timeout")                 // Request timed out before a response arrived
	ErrTransportOther    = errors.New("transport error")                   // DNS, TCP, TLS and other pre-response failures
	ErrBlockDetected     = errors.New("anti-scraping block detected")      // Response classified as BLOCKED
	ErrNotFound          = errors.New("target not found (404)")            // Definitive absence, never retried
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status")            // Non-200/404, non-block status
	ErrInvalidContent    = errors.New("invalid response content")          // 200 but not an HTML document
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")                // Checkpoint failed to parse on load
	ErrExtractorItem     = errors.New("extractor item failure")            // A single hotel/review could not be parsed
	ErrRetryFailed       = errors.New("request failed after all retries") // Wraps the last underlying error

	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/sqlite errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// IsTimeout reports whether err is a network or context timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		// The last attempt's cause is wrapped alongside ErrRetryFailed
		switch {
		case errors.Is(err, ErrBlockDetected):
			return "RetryFailed_Blocked"
		case errors.Is(err, ErrTransportTimeout):
			return "RetryFailed_NetworkTimeout"
		case errors.Is(err, ErrTransportOther):
			return "RetryFailed_NetworkOther"
		}
		return "RetryFailed_Unknown"
	case errors.Is(err, ErrBlockDetected):
		return "Block_Detected"
	case errors.Is(err, ErrNotFound):
		return "HTTP_404"
	case errors.Is(err, ErrUnexpectedStatus):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 401") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, "status 5") {
			return "HTTP_5xx"
		}
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrInvalidContent):
		return "Content_Invalid"
	case errors.Is(err, ErrTransportTimeout):
		return "Network_Timeout"
	case errors.Is(err, ErrTransportOther):
		return "Network_Other"
	case errors.Is(err, ErrCheckpointCorrupt):
		return "Checkpoint_Corrupt"
	case errors.Is(err, ErrExtractorItem):
		return "Content_ExtractorItem"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
