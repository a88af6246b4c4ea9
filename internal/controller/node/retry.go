package node

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
)

// retryOnConflict executes a function with exponential backoff retry logic.
// It retries on conflict errors (optimistic concurrency control failures).
func retryOnConflict(ctx context.Context, operation func() error) error {
	backoffConfig := backoff.NewExponentialBackOff()
	backoffConfig.InitialInterval = 250 * time.Millisecond
	backoffConfig.MaxInterval = 1 * time.Second
	backoffConfig.MaxElapsedTime = 10 * time.Second
	backoffConfig.Multiplier = 2.0

	return backoff.Retry(func() error {
		err := operation()
		if err != nil && apierrors.IsConflict(err) {
			return err
		}
		// Don't retry on other errors
		return backoff.Permanent(err)
	}, backoff.WithContext(backoffConfig, ctx))
}

// updateNodeWithRetry refreshes the node from the API server, applies mutate,
// and updates it, retrying on conflicts. A node that disappears mid-update is
// treated as success since there is nothing left to mutate.
func (r *NodeLabelReconciler) updateNodeWithRetry(ctx context.Context, name string, mutate func(*corev1.Node) bool) error {
	return retryOnConflict(ctx, func() error {
		node := &corev1.Node{}
		if err := r.Get(ctx, types.NamespacedName{Name: name}, node); err != nil {
			if apierrors.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to refresh node %s: %w", name, err)
		}

		if !mutate(node) {
			return nil
		}

		if err := r.Update(ctx, node); err != nil {
			return err
		}

		return nil
	})
}
