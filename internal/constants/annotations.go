package constants

// Annotation keys used by the operator.
const (
	// AnnotationLabelsRestored marks a Node incarnation for which label
	// restoration has already been attempted. Restoration runs at most once
	// per incarnation; the annotation disappears with the Node object, so a
	// recreated Node with the same name is eligible again.
	AnnotationLabelsRestored = "nodelabelpreserver.dc-tec.dev/labels-restored"

	// AnnotationLabelsRestoredValue is the value set on AnnotationLabelsRestored.
	AnnotationLabelsRestoredValue = "1"
)
