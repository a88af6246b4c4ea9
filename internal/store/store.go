// Package store provides the backup record store used to preserve node
// labels across delete-and-recreate cycles.
//
// # Supported Providers
//
// Currently implemented:
//   - ConfigMap (default) - one ConfigMap per record, see configmap.go
//   - S3 / S3-compatible (AWS, MinIO, etc.) - see s3.go
//   - In-memory (testing) - see memory.go
//
// All providers implement the same contract: a Get that distinguishes
// "record absent" from failure, and a ForceReplace that atomically replaces
// the full record under forced ownership so repeated identical writes are
// indistinguishable and no partial-field merges ever survive a replace.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrNotFound is returned by Get when no record exists for a key.
// Callers treat it as "nothing to restore", not as a failure.
var ErrNotFound = errors.New("backup record not found")

// Record is the persisted backup record for a single node identity.
//
// PreservedLabelsJSON is the compatibility-relevant field: a UTF-8 JSON
// object mapping label key to label value, omitted entirely when the backup
// is empty. NodeName records which node produced the record; the record key
// is a digest, so without it an operator (or the sweeper) cannot correlate a
// record back to its node.
type Record struct {
	NodeName            string `json:"node_name,omitempty"`
	PreservedLabelsJSON string `json:"preserved_labels_json,omitempty"`
}

// RecordInfo describes a stored record without its contents.
type RecordInfo struct {
	// Key is the record key.
	Key string
	// ModTime is when the record was last written, as far as the backend
	// can tell. Used by the sweeper's retention check.
	ModTime time.Time
}

// Client is the backup store consumed by the backup and restore policies.
type Client interface {
	// Get returns the record stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// ForceReplace atomically replaces the full record at key, claiming
	// ownership of every field regardless of prior writers. A record whose
	// PreservedLabelsJSON is empty scrubs any labels left by a previous
	// incarnation.
	ForceReplace(ctx context.Context, key string, record *Record) error

	// List returns info for every record owned by this operator.
	List(ctx context.Context) ([]RecordInfo, error)

	// Delete removes the record at key. Deleting an absent record is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// ProviderType identifies the store backend.
type ProviderType string

const (
	// ProviderConfigMap stores records as ConfigMaps in the cluster itself.
	ProviderConfigMap ProviderType = "configmap"
	// ProviderS3 stores records as objects in an S3-compatible bucket.
	ProviderS3 ProviderType = "s3"
)

// Config holds provider-agnostic store configuration.
type Config struct {
	// Provider identifies which backend to use. Empty defaults to ConfigMap.
	Provider ProviderType

	// Namespace is the namespace backup ConfigMaps live in. Required for the
	// ConfigMap provider.
	Namespace string

	// S3 holds S3-specific configuration. Required for the S3 provider.
	S3 *S3Options
}

// Open opens a store backend based on the provider configuration.
// kubeClient is only used by the ConfigMap provider.
func Open(ctx context.Context, cfg Config, kubeClient client.Client) (Client, error) {
	switch cfg.Provider {
	case ProviderConfigMap, "":
		if cfg.Namespace == "" {
			return nil, fmt.Errorf("namespace is required for the configmap store")
		}
		if kubeClient == nil {
			return nil, fmt.Errorf("kubernetes client is required for the configmap store")
		}
		return NewConfigMapStore(kubeClient, cfg.Namespace), nil
	case ProviderS3:
		if cfg.S3 == nil {
			return nil, fmt.Errorf("s3 options are required for the s3 store")
		}
		return OpenS3Store(ctx, *cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store provider: %q", cfg.Provider)
	}
}
