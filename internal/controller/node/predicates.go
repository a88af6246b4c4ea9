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
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// NodeLifecyclePredicate filters Node events to only reconcile on changes the
// label lifecycle cares about. Kubelets refresh node status every few seconds
// across the whole fleet; without this filter every heartbeat would wake the
// controller.
//
// The predicate allows reconciliation when:
//   - The node is created
//   - The node is deleted
//   - DeletionTimestamp changes (triggers the backup path)
//   - Finalizers change
//   - Labels or annotations change (may require a restore)
//
// Status-only updates (heartbeats, conditions, capacity) are filtered out.
func NodeLifecyclePredicate() predicate.Predicate {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			// Always reconcile on create
			return true
		},
		DeleteFunc: func(e event.DeleteEvent) bool {
			// Always reconcile on delete
			return true
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			oldNode, ok := e.ObjectOld.(*corev1.Node)
			if !ok {
				return true // If type assertion fails, allow reconciliation to be safe
			}
			newNode, ok := e.ObjectNew.(*corev1.Node)
			if !ok {
				return true // If type assertion fails, allow reconciliation to be safe
			}

			// Reconcile if DeletionTimestamp changed
			if !oldNode.DeletionTimestamp.Equal(newNode.DeletionTimestamp) {
				return true
			}

			// Reconcile if finalizers changed
			if !equality.Semantic.DeepEqual(oldNode.Finalizers, newNode.Finalizers) {
				return true
			}

			// Reconcile if labels changed
			if !equality.Semantic.DeepEqual(oldNode.Labels, newNode.Labels) {
				return true
			}

			// Reconcile if annotations changed
			if !equality.Semantic.DeepEqual(oldNode.Annotations, newNode.Annotations) {
				return true
			}

			// Filter out status-only updates
			return false
		},
		GenericFunc: func(e event.GenericEvent) bool {
			// Always reconcile on generic events (rare, but be safe)
			return true
		},
	}
}
