//go:build integration
// +build integration

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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/dc-tec/node-label-preserver/internal/backoff"
	"github.com/dc-tec/node-label-preserver/internal/constants"
	"github.com/dc-tec/node-label-preserver/internal/preserver"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

var _ = Describe("Node label lifecycle", func() {
	ctx := context.Background()

	newReconciler := func(backupStore store.Client) *NodeLabelReconciler {
		return &NodeLabelReconciler{
			Client:  k8sClient,
			Scheme:  k8sScheme,
			Backup:  preserver.NewBackupManager(backupStore, nil),
			Restore: preserver.NewRestoreManager(k8sClient, backupStore),
			Backoff: backoff.NewTracker(constants.BackoffBase, constants.MaxRetryTime),
		}
	}

	nodeReq := func(name string) reconcile.Request {
		return reconcile.Request{NamespacedName: types.NamespacedName{Name: name}}
	}

	getNode := func(name string) (*corev1.Node, error) {
		node := &corev1.Node{}
		err := k8sClient.Get(ctx, types.NamespacedName{Name: name}, node)
		return node, err
	}

	It("preserves custom labels across a delete and recreate cycle", func() {
		backupStore := store.NewMemoryStore()
		reconciler := newReconciler(backupStore)

		By("creating a labeled node")
		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name: "lifecycle-worker",
				Labels: map[string]string{
					"workload-class": "batch",
					"rack":           "r07",
				},
			},
		}
		Expect(k8sClient.Create(ctx, node)).To(Succeed())

		By("attaching the finalizer on first sight")
		result, err := reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(constants.RequeueShort))

		current, err := getNode("lifecycle-worker")
		Expect(err).NotTo(HaveOccurred())
		Expect(controllerutil.ContainsFinalizer(current, constants.FinalizerName)).To(BeTrue())

		By("restoring (a no-op here) and setting the marker")
		_, err = reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())

		current, err = getNode("lifecycle-worker")
		Expect(err).NotTo(HaveOccurred())
		Expect(current.Annotations).To(HaveKeyWithValue(constants.AnnotationLabelsRestored, constants.AnnotationLabelsRestoredValue))

		By("deleting the node; the finalizer holds it in Terminating")
		Expect(k8sClient.Delete(ctx, current)).To(Succeed())

		current, err = getNode("lifecycle-worker")
		Expect(err).NotTo(HaveOccurred())
		Expect(current.DeletionTimestamp.IsZero()).To(BeFalse())

		By("backing labels up and releasing the finalizer")
		result, err = reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(BeZero())

		Eventually(func() bool {
			_, err := getNode("lifecycle-worker")
			return apierrors.IsNotFound(err)
		}).Should(BeTrue())

		record, err := backupStore.Get(ctx, preserver.BackupKey("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())
		Expect(record.PreservedLabelsJSON).To(MatchJSON(`{"workload-class":"batch","rack":"r07"}`))

		By("recreating the node with a fresh conflicting label")
		recreated := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name: "lifecycle-worker",
				Labels: map[string]string{
					"workload-class": "interactive",
				},
				Finalizers: []string{constants.FinalizerName},
			},
		}
		Expect(k8sClient.Create(ctx, recreated)).To(Succeed())

		By("restoring only the missing labels")
		_, err = reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())

		current, err = getNode("lifecycle-worker")
		Expect(err).NotTo(HaveOccurred())
		Expect(current.Labels).To(HaveKeyWithValue("rack", "r07"))
		Expect(current.Labels).To(HaveKeyWithValue("workload-class", "interactive"))
		Expect(current.Annotations).To(HaveKeyWithValue(constants.AnnotationLabelsRestored, constants.AnnotationLabelsRestoredValue))

		By("never restoring twice for the same incarnation")
		patched := current.DeepCopy()
		delete(patched.Labels, "rack")
		Expect(k8sClient.Update(ctx, patched)).To(Succeed())

		_, err = reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())

		current, err = getNode("lifecycle-worker")
		Expect(err).NotTo(HaveOccurred())
		Expect(current.Labels).NotTo(HaveKey("rack"))

		By("cleaning up")
		Expect(k8sClient.Delete(ctx, current)).To(Succeed())
		_, err = reconciler.Reconcile(ctx, nodeReq("lifecycle-worker"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("scrubs a stale record when a node leaves with no custom labels", func() {
		backupStore := store.NewMemoryStore()
		reconciler := newReconciler(backupStore)
		key := preserver.BackupKey("plain-worker")

		stale := &store.Record{NodeName: "plain-worker", PreservedLabelsJSON: `{"rack":"r01"}`}
		Expect(backupStore.ForceReplace(ctx, key, stale)).To(Succeed())

		node := &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{
				Name:       "plain-worker",
				Finalizers: []string{constants.FinalizerName},
				Annotations: map[string]string{
					constants.AnnotationLabelsRestored: constants.AnnotationLabelsRestoredValue,
				},
			},
		}
		Expect(k8sClient.Create(ctx, node)).To(Succeed())
		Expect(k8sClient.Delete(ctx, node)).To(Succeed())

		_, err := reconciler.Reconcile(ctx, nodeReq("plain-worker"))
		Expect(err).NotTo(HaveOccurred())

		record, err := backupStore.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(record.PreservedLabelsJSON).To(BeEmpty())
	})
})
