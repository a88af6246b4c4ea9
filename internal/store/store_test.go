package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func TestOpen(t *testing.T) {
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	kubeClient := fake.NewClientBuilder().WithScheme(scheme).Build()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "configmap provider",
			cfg:  Config{Provider: ProviderConfigMap, Namespace: "ns"},
		},
		{
			name: "empty provider defaults to configmap",
			cfg:  Config{Namespace: "ns"},
		},
		{
			name:    "configmap provider requires namespace",
			cfg:     Config{Provider: ProviderConfigMap},
			wantErr: "namespace is required",
		},
		{
			name:    "s3 provider requires options",
			cfg:     Config{Provider: ProviderS3},
			wantErr: "s3 options are required",
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "gcs"},
			wantErr: "unknown store provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(context.Background(), tt.cfg, kubeClient)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "node-labels-abc")
	assert.True(t, errors.Is(err, ErrNotFound))

	record := &Record{NodeName: "worker-1", PreservedLabelsJSON: `{"zone":"eu-west-1a"}`}
	require.NoError(t, s.ForceReplace(ctx, "node-labels-abc", record))

	got, err := s.Get(ctx, "node-labels-abc")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	require.NoError(t, s.Delete(ctx, "node-labels-abc"))
	_, err = s.Get(ctx, "node-labels-abc")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_ListModTimes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	writtenAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return writtenAt }

	require.NoError(t, s.ForceReplace(ctx, "node-labels-b", &Record{NodeName: "worker-2"}))
	require.NoError(t, s.ForceReplace(ctx, "node-labels-a", &Record{NodeName: "worker-1"}))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "node-labels-a", infos[0].Key)
	assert.Equal(t, "node-labels-b", infos[1].Key)
	assert.Equal(t, writtenAt, infos[0].ModTime)
}
