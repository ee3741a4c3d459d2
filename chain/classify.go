package chain

import (
	"strings"

	"github.com/greengoods/gardenqueue/errors"
)

// Classify buckets a submission error as retryable or not, with a short
// error-type label for metrics. Typed errors from the queue's own
// taxonomy win over substring matching.
func Classify(err error) (retryable bool, errorType string) {
	if err == nil {
		return false, ""
	}
	if errors.IsPermanent(err) {
		return false, "permanent"
	}
	if errors.IsQuota(err) {
		return false, "storage_quota"
	}
	if errors.IsTransient(err) {
		return true, "transient"
	}

	errStr := err.Error()

	// Network/RPC errors - retry is appropriate
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "EOF") {
		return true, "network_error"
	}

	// Remote service throttling - retry after backoff
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429") {
		return true, "rate_limited"
	}

	// Bundler/paymaster state errors - retry with longer backoff
	if strings.Contains(errStr, "nonce too low") ||
		strings.Contains(errStr, "nonce too high") ||
		strings.Contains(errStr, "replacement transaction underpriced") ||
		strings.Contains(errStr, "already known") {
		return true, "nonce_error"
	}

	// Sponsorship/balance errors - permanent until the account changes
	if strings.Contains(errStr, "insufficient funds") ||
		strings.Contains(errStr, "paymaster rejected") ||
		strings.Contains(errStr, "sponsorship") {
		return false, "sponsorship_error"
	}

	// Contract-level rejections - permanent
	if strings.Contains(errStr, "execution reverted") ||
		strings.Contains(errStr, "invalid opcode") ||
		strings.Contains(errStr, "out of gas") {
		return false, "contract_error"
	}

	// Unknown errors - retry with caution
	return true, "unknown_error"
}

// Humanize maps a failure onto a message fit for end users. Pattern
// based, mirroring the client-side error formatting layer.
func Humanize(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case errors.IsQuota(err) || strings.Contains(errStr, "quota"):
		return "Your device is out of storage space. Free up some space and try again."
	case strings.Contains(errStr, "permission") || strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "not allowed"):
		return "You don't have access to this garden. Check your garden access and try again."
	case strings.Contains(errStr, "execution reverted") || strings.Contains(errStr, "contract"):
		return "The garden registry rejected this submission. Please resubmit your work."
	case strings.Contains(errStr, "insufficient funds") || strings.Contains(errStr, "sponsorship") ||
		strings.Contains(errStr, "paymaster"):
		return "Transaction sponsorship is unavailable right now. Please try again later."
	case errors.Is(err, errors.ErrRetryBudget):
		return "We couldn't sync this item after several tries. It will stay saved on this device until you resubmit."
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection"):
		return "You appear to be offline. Your work is saved and will sync automatically."
	default:
		return "Something went wrong while syncing. Your work is saved on this device."
	}
}
