package provider

import (
	"errors"
	"strings"
)

// ErrNoProviders indicates no usable provider was configured.
var ErrNoProviders = errors.New("no providers configured")

// ErrQuotaExhausted indicates every configured provider is rate-limited.
var ErrQuotaExhausted = errors.New("all providers quota exhausted")

// IsRateLimitError reports whether an error signals provider-side rate or
// quota limiting, detected from error class/code text.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	for _, marker := range []string{
		"429",
		"rate limit",
		"rate_limit",
		"quota",
		"resource_exhausted",
		"overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// IsRetryableError reports whether an error is transient enough that the
// next provider in the failover order should be tried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if IsRateLimitError(err) {
		return true
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
