package types

import (
	"fmt"
	"time"
)

// VerdictStatus is the outcome of checking a found key against its
// provider. The set is closed; renderers switch over it exhaustively.
type VerdictStatus string

const (
	StatusValid       VerdictStatus = "valid"
	StatusInvalid     VerdictStatus = "invalid"
	StatusRateLimited VerdictStatus = "rate-limited"
	StatusNetworkErr  VerdictStatus = "network-error"
	StatusUnsupported VerdictStatus = "unsupported-provider"
)

// ParseVerdictStatus validates a status string.
func ParseVerdictStatus(s string) (VerdictStatus, error) {
	switch v := VerdictStatus(s); v {
	case StatusValid, StatusInvalid, StatusRateLimited, StatusNetworkErr, StatusUnsupported:
		return v, nil
	}
	return "", fmt.Errorf("unknown verdict status %q", s)
}

// ValidationVerdict records the outcome of validating one finding. Written
// exactly once; a finding is never re-validated after a verdict lands.
type ValidationVerdict struct {
	Status     VerdictStatus `json:"status"`
	Message    string        `json:"message,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // hint from the provider, if any
}

// NewVerdict creates a verdict stamped with the current time.
func NewVerdict(status VerdictStatus, message string) *ValidationVerdict {
	return &ValidationVerdict{
		Status:    status,
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// NewRateLimitedVerdict records a rate-limit outcome with the provider's
// retry-after hint.
func NewRateLimitedVerdict(retryAfter time.Duration) *ValidationVerdict {
	return &ValidationVerdict{
		Status:     StatusRateLimited,
		Message:    "provider rate limit",
		CheckedAt:  time.Now(),
		RetryAfter: retryAfter,
	}
}
