package preserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/clock"

	"github.com/dc-tec/node-label-preserver/internal/constants"
	controllermetrics "github.com/dc-tec/node-label-preserver/internal/controller"
	"github.com/dc-tec/node-label-preserver/internal/logging"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

// BackupManager persists a node's label snapshot when the node is leaving
// the cluster (the Cleanup path of the finalizer lifecycle).
type BackupManager struct {
	store store.Client
	clock clock.PassiveClock
}

// NewBackupManager creates a BackupManager writing to the given store.
// A nil clock defaults to the real clock; tests inject a fake.
func NewBackupManager(s store.Client, c clock.PassiveClock) *BackupManager {
	if c == nil {
		c = clock.RealClock{}
	}
	return &BackupManager{store: s, clock: c}
}

// Preserve writes the node's current labels to the backup store. It is
// invoked with a node whose deletion has been requested and whose finalizer
// is still present; returning nil permits the finalizer to be stripped.
//
// The write happens on every cleanup, labels or not: an empty record is what
// scrubs a stale record left by a prior incarnation, which would otherwise
// corrupt a later restore. Repeated identical writes produce identical
// records, so at-least-once redelivery of Cleanup is harmless.
func (m *BackupManager) Preserve(ctx context.Context, logger logr.Logger, node *corev1.Node) error {
	deletionRequestedAt := node.DeletionTimestamp
	if deletionRequestedAt == nil {
		return fmt.Errorf("node %s has no deletion timestamp; cleanup invoked outside PendingCleanup", node.Name)
	}

	// Safety valve: a store that keeps failing must not block node deletion
	// forever. Past the retry horizon we give up on this backup and let the
	// node go.
	age := m.clock.Since(deletionRequestedAt.Time)
	if age > constants.MaxRetryTime {
		logger.Info("Cleanup exceeded the retry horizon; unblocking deletion without a backup write",
			"node", node.Name, "pendingFor", age)
		controllermetrics.IncrementSafetyValve(node.Name)
		logging.LogAuditEvent(logger, logging.EventSafetyValve, map[string]string{
			"node":        node.Name,
			"pending_for": age.String(),
		})
		return nil
	}

	record, err := buildRecord(node.Name, node.Labels)
	if err != nil {
		return err
	}

	key := BackupKey(node.Name)
	if err := m.store.ForceReplace(ctx, key, record); err != nil {
		return fmt.Errorf("failed to write backup record %s for node %s: %w", key, node.Name, err)
	}

	controllermetrics.IncrementBackups(node.Name)
	logging.LogAuditEvent(logger, logging.EventBackupWritten, map[string]string{
		"node":   node.Name,
		"key":    key,
		"labels": strconv.Itoa(len(node.Labels)),
	})

	return nil
}
