package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Transient errors indicate temporary conditions that should be retried.
// These errors result in a requeue with a per-node backoff delay.

// ErrTransientStore indicates a temporary backup store failure that should be
// retried. This includes timeouts, connection refused, throttling, and server
// errors from the store backend.
var ErrTransientStore = errors.New("transient backup store error")

// ErrTransientKubernetesAPI indicates a transient Kubernetes API error that
// should be retried. This includes rate limiting, temporary server errors,
// and network issues.
var ErrTransientKubernetesAPI = errors.New("transient Kubernetes API error")

// ErrDecodeFailure indicates a backup record whose stored label JSON could
// not be decoded. There is no self-healing for a corrupt record: the error is
// retried indefinitely and restore stays blocked until the record is fixed by
// hand.
var ErrDecodeFailure = errors.New("backup record decode failure")

// ErrMissingIdentity indicates a watch event without a node name. The event
// is dropped rather than retried; real objects always carry a name.
var ErrMissingIdentity = errors.New("node event is missing an identity")

// IsTransientStore checks if an error is a transient backup store error.
func IsTransientStore(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTransientStore) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"context deadline exceeded",
		"timeout",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"dial tcp",
		"broken pipe",
		"slow down",
		"service unavailable",
		"internal server error",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsTransientKubernetesAPI checks if an error is a transient Kubernetes API error.
func IsTransientKubernetesAPI(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTransientKubernetesAPI) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"rate limit",
		"too many requests",
		"server error",
		"service unavailable",
		"internal server error",
		"context deadline exceeded",
		"timeout",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsDecodeFailure checks if an error is a backup record decode failure.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrDecodeFailure)
}

// IsMissingIdentity checks if an error is a missing identity error.
func IsMissingIdentity(err error) bool {
	return errors.Is(err, ErrMissingIdentity)
}

// WrapTransientStore wraps an error as a transient backup store error.
// If the error is already classified as transient, it is returned as-is.
func WrapTransientStore(err error) error {
	if err == nil {
		return nil
	}

	if IsTransientStore(err) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTransientStore, err)
}

// WrapTransientKubernetesAPI wraps an error as a transient Kubernetes API error.
func WrapTransientKubernetesAPI(err error) error {
	if err == nil {
		return nil
	}

	if IsTransientKubernetesAPI(err) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTransientKubernetesAPI, err)
}

// WrapDecodeFailure wraps an error as a backup record decode failure.
func WrapDecodeFailure(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
}

// IsRetryable reports whether an error should be retried via backoff.
// Everything except a missing identity is retried: the controller never gives
// up permanently on a node, including on decode failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	return !IsMissingIdentity(err)
}
