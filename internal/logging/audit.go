package logging

import "github.com/go-logr/logr"

// Audit event types emitted by the operator.
const (
	// EventBackupWritten is emitted after a label snapshot was persisted to
	// the backup store during node cleanup.
	EventBackupWritten = "backup.written"
	// EventLabelsRestored is emitted after labels were merged back onto a
	// recreated node.
	EventLabelsRestored = "labels.restored"
	// EventSafetyValve is emitted when cleanup gives up on the store and
	// unblocks node deletion without a successful backup write.
	EventSafetyValve = "cleanup.safety-valve"
	// EventRecordSwept is emitted when the sweeper deletes an orphaned
	// backup record.
	EventRecordSwept = "record.swept"
)

// LogAuditEvent logs a structured audit event for operator actions.
// Audit events are distinct from regular debug/info logs and are tagged
// with "audit=true" for easy filtering in log aggregation systems.
func LogAuditEvent(logger logr.Logger, eventType string, fields map[string]string) {
	auditLogger := logger.WithValues("audit", "true", "event_type", eventType)
	for key, value := range fields {
		auditLogger = auditLogger.WithValues(key, value)
	}
	auditLogger.Info("Operator audit event")
}
