// This file contains the ConfigMap-backed record store. It is the default
// provider: records live in the cluster the operator already talks to, one
// ConfigMap per node identity, written with Server-Side Apply so a replace
// under forced ownership also removes data keys a prior write left behind.
package store

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/dc-tec/node-label-preserver/internal/constants"
	operatorerrors "github.com/dc-tec/node-label-preserver/internal/errors"
	"github.com/dc-tec/node-label-preserver/internal/kube"
)

// ConfigMap data keys.
const (
	// DataKeyPreservedLabels holds the preserved label JSON object.
	DataKeyPreservedLabels = "preserved_labels_json"
	// DataKeyNodeName holds the node name the record was taken from.
	DataKeyNodeName = "node_name"
)

// ConfigMapStore stores records as ConfigMaps in a single namespace.
type ConfigMapStore struct {
	client    client.Client
	namespace string
}

// NewConfigMapStore creates a ConfigMap-backed store writing into namespace.
func NewConfigMapStore(c client.Client, namespace string) *ConfigMapStore {
	return &ConfigMapStore{client: c, namespace: namespace}
}

// Get returns the record stored in the ConfigMap named key.
func (s *ConfigMapStore) Get(ctx context.Context, key string) (*Record, error) {
	var cm corev1.ConfigMap
	if err := s.client.Get(ctx, types.NamespacedName{Namespace: s.namespace, Name: key}, &cm); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, operatorerrors.WrapTransientKubernetesAPI(err)
	}

	return &Record{
		NodeName:            cm.Data[DataKeyNodeName],
		PreservedLabelsJSON: cm.Data[DataKeyPreservedLabels],
	}, nil
}

// ForceReplace applies the full record as a ConfigMap under forced ownership.
// Data keys absent from the record (an empty backup) are removed from the
// ConfigMap because the apply claims the whole data map.
func (s *ConfigMapStore) ForceReplace(ctx context.Context, key string, record *Record) error {
	data := map[string]string{}
	if record.NodeName != "" {
		data[DataKeyNodeName] = record.NodeName
	}
	if record.PreservedLabelsJSON != "" {
		data[DataKeyPreservedLabels] = record.PreservedLabelsJSON
	}

	cm := &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      key,
			Namespace: s.namespace,
			Labels: map[string]string{
				constants.LabelManagedBy: constants.ServiceName,
			},
		},
		Data: data,
	}

	applyConfig, err := kube.ToApplyConfiguration(cm)
	if err != nil {
		return err
	}

	if err := s.client.Apply(ctx, applyConfig,
		client.ForceOwnership,
		client.FieldOwner(constants.ServiceName),
	); err != nil {
		return operatorerrors.WrapTransientKubernetesAPI(err)
	}

	return nil
}

// List returns info for every backup ConfigMap owned by this operator.
func (s *ConfigMapStore) List(ctx context.Context) ([]RecordInfo, error) {
	var cms corev1.ConfigMapList
	if err := s.client.List(ctx, &cms,
		client.InNamespace(s.namespace),
		client.MatchingLabels{constants.LabelManagedBy: constants.ServiceName},
	); err != nil {
		return nil, operatorerrors.WrapTransientKubernetesAPI(err)
	}

	infos := make([]RecordInfo, 0, len(cms.Items))
	for i := range cms.Items {
		cm := &cms.Items[i]
		infos = append(infos, RecordInfo{
			Key:     cm.Name,
			ModTime: configMapModTime(cm),
		})
	}

	return infos, nil
}

// Delete removes the ConfigMap named key. Absence is not an error.
func (s *ConfigMapStore) Delete(ctx context.Context, key string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      key,
			Namespace: s.namespace,
		},
	}
	if err := s.client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return operatorerrors.WrapTransientKubernetesAPI(err)
	}
	return nil
}

// configMapModTime returns the time of the operator's last apply to the
// ConfigMap. A ConfigMap's creationTimestamp survives every replace, so it
// would understate the record's freshness for identities that churn through
// many incarnations; the managed fields entry for our field manager tracks
// the most recent write.
func configMapModTime(cm *corev1.ConfigMap) time.Time {
	modTime := cm.CreationTimestamp.Time
	for _, mf := range cm.ManagedFields {
		if mf.Manager != constants.ServiceName || mf.Time == nil {
			continue
		}
		if mf.Time.Time.After(modTime) {
			modTime = mf.Time.Time
		}
	}
	return modTime
}
