package constants

// Names used across the operator.
const (
	// ServiceName identifies the operator; it is used as the field manager
	// for all forced-ownership server-side apply writes so that a replace
	// removes data previously owned by the same manager.
	ServiceName = "node-label-preserver"

	// FinalizerName is the finalizer token placed on Nodes to block their
	// final removal until the label backup has been written (or the cleanup
	// safety valve has fired).
	FinalizerName = "nodelabelpreserver.dc-tec.dev/finalizer"

	// BackupKeyPrefix prefixes every backup record key. The remainder of the
	// key is the hex SHA-256 digest of the node name, so keys have a fixed
	// length regardless of how long the node name is.
	BackupKeyPrefix = "node-labels-"

	// LabelManagedBy marks ConfigMap backup records as owned by this
	// operator so the sweeper can list them without touching unrelated
	// ConfigMaps.
	LabelManagedBy = "app.kubernetes.io/managed-by"
)
