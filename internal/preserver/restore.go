package preserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/dc-tec/node-label-preserver/internal/constants"
	controllermetrics "github.com/dc-tec/node-label-preserver/internal/controller"
	"github.com/dc-tec/node-label-preserver/internal/kube"
	"github.com/dc-tec/node-label-preserver/internal/logging"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

// RestoreManager applies a preserved label set to a freshly (re)created node
// (the Apply path of the finalizer lifecycle).
type RestoreManager struct {
	client client.Client
	store  store.Client
}

// NewRestoreManager creates a RestoreManager reading from the given store
// and patching nodes through the given client.
func NewRestoreManager(c client.Client, s store.Client) *RestoreManager {
	return &RestoreManager{client: c, store: s}
}

// Restore merges the backed-up labels onto the node, inserting only keys the
// node does not already carry, and marks the incarnation as restored.
//
// Apply fires on every observed change, including ones this controller
// produced, so the restored marker is checked first: once it is set for an
// incarnation nothing is ever restored again, and a user who deletes a
// restored label afterwards is not fought. The marker is set even when there
// was nothing to restore, so later events skip the store read entirely.
func (m *RestoreManager) Restore(ctx context.Context, logger logr.Logger, node *corev1.Node) error {
	if node.Annotations[constants.AnnotationLabelsRestored] == constants.AnnotationLabelsRestoredValue {
		return nil
	}

	key := BackupKey(node.Name)
	record, err := m.store.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to read backup record %s for node %s: %w", key, node.Name, err)
	}

	backup, err := decodeRecord(record)
	if err != nil {
		return fmt.Errorf("backup record %s for node %s: %w", key, node.Name, err)
	}

	// Fill-if-absent: a key already present on the node was set by the new
	// incarnation's infrastructure or a user after recreation, and that
	// fresh value wins over the snapshot of the old incarnation.
	toInsert := missingLabels(backup, node.Labels)

	if err := m.patchNode(ctx, node.Name, toInsert); err != nil {
		return fmt.Errorf("failed to patch node %s: %w", node.Name, err)
	}

	if len(toInsert) > 0 {
		controllermetrics.IncrementRestores(node.Name)
		logging.LogAuditEvent(logger, logging.EventLabelsRestored, map[string]string{
			"node":     node.Name,
			"restored": strconv.Itoa(len(toInsert)),
		})
	}

	return nil
}

// patchNode applies the inserted labels and the restored marker in a single
// forced-ownership patch. The apply skeleton carries only the inserted keys,
// never the node's pre-existing labels, so nothing already on the node is
// claimed or overwritten.
func (m *RestoreManager) patchNode(ctx context.Context, nodeName string, toInsert map[string]string) error {
	patch := &corev1.Node{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Node",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:   nodeName,
			Labels: toInsert,
			Annotations: map[string]string{
				constants.AnnotationLabelsRestored: constants.AnnotationLabelsRestoredValue,
			},
		},
	}

	applyConfig, err := kube.ToApplyConfiguration(patch)
	if err != nil {
		return err
	}

	return m.client.Apply(ctx, applyConfig,
		client.ForceOwnership,
		client.FieldOwner(constants.ServiceName),
	)
}

// missingLabels returns the backup entries absent from current.
func missingLabels(backup, current map[string]string) map[string]string {
	toInsert := map[string]string{}
	for key, value := range backup {
		if _, exists := current[key]; !exists {
			toInsert[key] = value
		}
	}
	return toInsert
}
