package constants

import "time"

// Retry and requeue intervals used by the controller.
const (
	// BackoffBase is the first retry delay after a reconciliation error.
	// Subsequent failures for the same node double the delay.
	BackoffBase = 5 * time.Second

	// MaxRetryTime caps the retry delay and doubles as the cleanup safety
	// valve: once a Node has been pending deletion for longer than this,
	// cleanup reports success without a store write so that deletion of the
	// underlying object is never blocked forever by a failing store.
	MaxRetryTime = 1 * time.Hour

	// RequeueShort is used when the controller wants to re-observe an object
	// promptly, for example right after attaching the finalizer.
	RequeueShort = 5 * time.Second
)
