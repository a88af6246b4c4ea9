/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package node

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/util/workqueue"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/dc-tec/node-label-preserver/internal/backoff"
	"github.com/dc-tec/node-label-preserver/internal/constants"
	controllermetrics "github.com/dc-tec/node-label-preserver/internal/controller"
	operrors "github.com/dc-tec/node-label-preserver/internal/errors"
	"github.com/dc-tec/node-label-preserver/internal/preserver"
)

const controllerName = "nodelabel"

// NodeLabelReconciler drives the label preservation lifecycle for cluster
// nodes: it attaches the finalizer to live nodes, restores preserved labels
// onto new incarnations, and backs labels up before a deletion is released.
type NodeLabelReconciler struct {
	client.Client
	Scheme  *runtime.Scheme
	Backup  *preserver.BackupManager
	Restore *preserver.RestoreManager
	Backoff *backoff.Tracker
}

// +kubebuilder:rbac:groups="",resources=nodes,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups="",resources=nodes/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=configmaps,verbs=get;list;watch;create;update;patch;delete

// Reconcile is part of the main Kubernetes reconciliation loop which aims to
// move the current state of the cluster closer to the desired state.
// For more details, check Reconcile and its Result here:
// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.22.4/pkg/reconcile
//
// Failed operations are requeued with a per-node exponential delay instead of
// being returned to the workqueue, so a persistently failing store never
// hot-loops a node and a success resets its history.
func (r *NodeLabelReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	// Events without a node name carry no identity to key a backup on.
	if req.Name == "" {
		return ctrl.Result{}, nil
	}

	logger := log.FromContext(ctx).WithValues(
		"node", req.Name,
		"controller", controllerName,
	)
	reconcileMetrics := controllermetrics.NewReconcileMetrics(req.Name, controllerName)

	start := time.Now()
	defer func() {
		reconcileMetrics.ObserveDuration(time.Since(start).Seconds())
	}()

	node := &corev1.Node{}
	if err := r.Get(ctx, req.NamespacedName, node); err != nil {
		if apierrors.IsNotFound(err) {
			// Fully removed. Any backup record stays behind for the next
			// incarnation; the sweeper reclaims it if none ever appears.
			r.Backoff.Forget(req.Name)
			return ctrl.Result{}, nil
		}
		return r.requeue(logger, reconcileMetrics, req.Name, "get node", err)
	}

	if !node.DeletionTimestamp.IsZero() {
		return r.reconcileDeletion(ctx, logger, reconcileMetrics, node)
	}

	if !controllerutil.ContainsFinalizer(node, constants.FinalizerName) {
		err := r.updateNodeWithRetry(ctx, node.Name, func(n *corev1.Node) bool {
			return controllerutil.AddFinalizer(n, constants.FinalizerName)
		})
		if err != nil {
			return r.requeue(logger, reconcileMetrics, req.Name, "add finalizer", err)
		}

		// Requeue to observe the node with the finalizer attached.
		return ctrl.Result{RequeueAfter: constants.RequeueShort}, nil
	}

	if err := r.Restore.Restore(ctx, logger, node); err != nil {
		return r.requeue(logger, reconcileMetrics, req.Name, "restore labels", err)
	}

	r.Backoff.Forget(req.Name)
	return ctrl.Result{}, nil
}

// reconcileDeletion backs the node's labels up and releases the finalizer.
// The finalizer is only removed after the backup write succeeded (or the
// safety valve fired), so a failing store blocks node removal rather than
// losing labels.
func (r *NodeLabelReconciler) reconcileDeletion(ctx context.Context, logger logr.Logger, reconcileMetrics *controllermetrics.ReconcileMetrics, node *corev1.Node) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(node, constants.FinalizerName) {
		r.Backoff.Forget(node.Name)
		return ctrl.Result{}, nil
	}

	logger.Info("Node is marked for deletion, backing up labels")

	if err := r.Backup.Preserve(ctx, logger, node); err != nil {
		return r.requeue(logger, reconcileMetrics, node.Name, "back up labels", err)
	}

	err := r.updateNodeWithRetry(ctx, node.Name, func(n *corev1.Node) bool {
		return controllerutil.RemoveFinalizer(n, constants.FinalizerName)
	})
	if err != nil {
		return r.requeue(logger, reconcileMetrics, node.Name, "remove finalizer", err)
	}

	r.Backoff.Forget(node.Name)
	return ctrl.Result{}, nil
}

// requeue logs the failure, records it, and schedules the next attempt with
// the node's current backoff delay. The error itself is not returned so the
// workqueue's own rate limiter does not stack on top of the per-node delay.
func (r *NodeLabelReconciler) requeue(logger logr.Logger, reconcileMetrics *controllermetrics.ReconcileMetrics, name, operation string, err error) (ctrl.Result, error) {
	delay := r.Backoff.Next(name)
	reconcileMetrics.IncrementError(errorReason(err))
	logger.Error(err, "Reconcile operation failed, scheduling retry",
		"operation", operation,
		"retry_after", delay.String(),
	)
	return ctrl.Result{RequeueAfter: delay}, nil
}

// errorReason maps an error to a low-cardinality metric label.
func errorReason(err error) string {
	switch {
	case operrors.IsDecodeFailure(err):
		return "DecodeFailure"
	case operrors.IsTransientStore(err):
		return "StoreError"
	case operrors.IsTransientKubernetesAPI(err):
		return "KubernetesAPIError"
	default:
		return "Error"
	}
}

// SetupWithManager sets up the controller with the Manager.
func (r *NodeLabelReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Node{}).
		WithEventFilter(NodeLifecyclePredicate()).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: 3,
			RateLimiter: workqueue.NewTypedMaxOfRateLimiter(
				workqueue.NewTypedItemExponentialFailureRateLimiter[ctrl.Request](1*time.Second, 60*time.Second),
				&workqueue.TypedBucketRateLimiter[ctrl.Request]{Limiter: rate.NewLimiter(rate.Limit(10), 100)},
			),
		}).
		Named(controllerName).
		Complete(r)
}
