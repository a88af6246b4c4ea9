// Package kube provides Kubernetes-specific utilities and helpers.
package kube

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ToApplyConfiguration converts a client.Object to a runtime.ApplyConfiguration
// for use with client.Client.Apply().
//
// The object must carry its GroupVersionKind (set TypeMeta explicitly on the
// apply skeletons this operator builds); Server-Side Apply cannot identify a
// resource without it.
func ToApplyConfiguration(obj client.Object) (runtime.ApplyConfiguration, error) {
	if obj == nil {
		return nil, fmt.Errorf("object cannot be nil")
	}

	gvk := obj.GetObjectKind().GroupVersionKind()
	if gvk.Empty() {
		return nil, fmt.Errorf("object %q has no GroupVersionKind set", obj.GetName())
	}

	u, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to convert object to unstructured: %w", err)
	}

	unstructuredObj := &unstructured.Unstructured{Object: u}
	unstructuredObj.SetGroupVersionKind(gvk)

	// The converter emits a null creationTimestamp for fresh objects; apply
	// configurations must not carry it.
	unstructured.RemoveNestedField(unstructuredObj.Object, "metadata", "creationTimestamp")

	return client.ApplyConfigurationFromUnstructured(unstructuredObj), nil
}
