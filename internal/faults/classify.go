package faults

import "strings"

// Recovery is a recommended recovery strategy for a classified failure.
// The pipeline only recommends; actual retry scheduling belongs to the caller.
type Recovery string

const (
	RecoveryRetry         Recovery = "retry"
	RecoverySkip          Recovery = "skip"
	RecoveryFail          Recovery = "fail"
	RecoveryDelayAndRetry Recovery = "delay_and_retry"
)

// ClassifyFetch maps a fetch collaborator error message to a fetch-stage Code.
// The matching is case-insensitive substring search, in priority order.
// Fragile by nature; kept as a single pure function so the table below can be
// tested exhaustively. If the fetch collaborator ever exposes structured
// codes, prefer those.
func ClassifyFetch(errMsg string) Code {
	msg := strings.ToLower(errMsg)

	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return CodeTimeout
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"):
		return CodeRateLimited
	case strings.Contains(msg, "access denied"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "403"):
		return CodeAccessDenied
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "404"):
		return CodeFetchFailed
	default:
		return CodeFetchFailed
	}
}

// Retryable reports whether an error message reads as transient.
// Timeout/network/retry-flavored messages are retryable; fatal/critical/
// invalid-configuration flavors are not.
func Retryable(errMsg string) bool {
	msg := strings.ToLower(errMsg)

	for _, fatal := range []string{"fatal", "critical", "invalid config", "invalid configuration", "unsupported"} {
		if strings.Contains(msg, fatal) {
			return false
		}
	}
	for _, transient := range []string{
		"timeout", "timed out", "deadline exceeded",
		"connection refused", "connection reset", "no such host",
		"temporarily", "retry", "rate limit", "503", "502", "eof",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

// Recommend picks a recovery strategy for a coded failure.
func Recommend(code Code, errMsg string) Recovery {
	switch code {
	case CodeRateLimited:
		return RecoveryDelayAndRetry
	case CodeTimeout:
		return RecoveryRetry
	case CodeDuplicateContent, CodeUnsupportedType:
		return RecoverySkip
	case CodeAccessDenied:
		return RecoveryFail
	}
	if Retryable(errMsg) {
		return RecoveryRetry
	}
	return RecoveryFail
}
