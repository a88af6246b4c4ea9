package preserver

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/dc-tec/node-label-preserver/internal/constants"
	operatorerrors "github.com/dc-tec/node-label-preserver/internal/errors"
	"github.com/dc-tec/node-label-preserver/internal/store"
)

var restoreScheme = func() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}()

func newRestoreFixture(t *testing.T, node *corev1.Node) (*RestoreManager, *store.MemoryStore, client.Client) {
	t.Helper()
	kubeClient := fake.NewClientBuilder().
		WithScheme(restoreScheme).
		WithObjects(node).
		Build()
	backupStore := store.NewMemoryStore()
	return NewRestoreManager(kubeClient, backupStore), backupStore, kubeClient
}

func getNode(t *testing.T, kubeClient client.Client, name string) *corev1.Node {
	t.Helper()
	node := &corev1.Node{}
	require.NoError(t, kubeClient.Get(context.Background(), types.NamespacedName{Name: name}, node))
	return node
}

func TestRestore_FillIfAbsent(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name:   "worker-1",
			Labels: map[string]string{"class": "interactive"},
		},
	}
	manager, backupStore, kubeClient := newRestoreFixture(t, node)

	record := &store.Record{
		NodeName:            "worker-1",
		PreservedLabelsJSON: `{"class":"batch","zone":"eu-west-1a"}`,
	}
	require.NoError(t, backupStore.ForceReplace(context.Background(), BackupKey("worker-1"), record))

	err := manager.Restore(context.Background(), logr.Discard(), node)
	require.NoError(t, err)

	updated := getNode(t, kubeClient, "worker-1")
	assert.Equal(t, "eu-west-1a", updated.Labels["zone"], "absent key is restored")
	assert.Equal(t, "interactive", updated.Labels["class"], "present key is never overwritten")
	assert.Equal(t, constants.AnnotationLabelsRestoredValue, updated.Annotations[constants.AnnotationLabelsRestored])
}

func TestRestore_NoBackupStillSetsMarker(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "worker-1"},
	}
	manager, _, kubeClient := newRestoreFixture(t, node)

	err := manager.Restore(context.Background(), logr.Discard(), node)
	require.NoError(t, err)

	updated := getNode(t, kubeClient, "worker-1")
	assert.Equal(t, constants.AnnotationLabelsRestoredValue, updated.Annotations[constants.AnnotationLabelsRestored],
		"marker is set even with nothing to restore so later events skip the store read")
}

func TestRestore_MarkerShortCircuits(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: "worker-1",
			Annotations: map[string]string{
				constants.AnnotationLabelsRestored: constants.AnnotationLabelsRestoredValue,
			},
		},
	}
	manager, backupStore, kubeClient := newRestoreFixture(t, node)

	record := &store.Record{NodeName: "worker-1", PreservedLabelsJSON: `{"zone":"eu-west-1a"}`}
	require.NoError(t, backupStore.ForceReplace(context.Background(), BackupKey("worker-1"), record))

	err := manager.Restore(context.Background(), logr.Discard(), node)
	require.NoError(t, err)

	// The user may have deleted a restored label since; it must not return.
	updated := getNode(t, kubeClient, "worker-1")
	assert.NotContains(t, updated.Labels, "zone")
}

func TestRestore_MalformedRecord(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "worker-1"},
	}
	manager, backupStore, kubeClient := newRestoreFixture(t, node)

	record := &store.Record{NodeName: "worker-1", PreservedLabelsJSON: `{"zone":`}
	require.NoError(t, backupStore.ForceReplace(context.Background(), BackupKey("worker-1"), record))

	err := manager.Restore(context.Background(), logr.Discard(), node)
	require.Error(t, err)
	assert.True(t, operatorerrors.IsDecodeFailure(err))

	// The marker must not be set, so the retry actually re-attempts.
	updated := getNode(t, kubeClient, "worker-1")
	assert.NotContains(t, updated.Annotations, constants.AnnotationLabelsRestored)
}

func TestMissingLabels(t *testing.T) {
	tests := []struct {
		name     string
		backup   map[string]string
		current  map[string]string
		expected map[string]string
	}{
		{
			name:     "all absent",
			backup:   map[string]string{"a": "1", "b": "2"},
			current:  nil,
			expected: map[string]string{"a": "1", "b": "2"},
		},
		{
			name:     "present keys skipped even when values differ",
			backup:   map[string]string{"a": "1", "b": "2"},
			current:  map[string]string{"a": "9"},
			expected: map[string]string{"b": "2"},
		},
		{
			name:     "nothing to insert",
			backup:   map[string]string{"a": "1"},
			current:  map[string]string{"a": "1", "b": "2"},
			expected: map[string]string{},
		},
		{
			name:     "empty backup",
			backup:   nil,
			current:  map[string]string{"a": "1"},
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, missingLabels(tt.backup, tt.current))
		})
	}
}
